package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(name string, line int64) Frame {
	return Frame{Function: name, File: "a.go", FirstLine: 1, Line: line}
}

func TestSampleMapMergesIdenticalTraces(t *testing.T) {
	m := NewSampleMap()
	m.Add(Trace{frame("f", 2), frame("main", 10)}, 3, 100)
	m.Add(Trace{frame("g", 5)}, 1, 1)
	m.Add(Trace{frame("f", 2), frame("main", 10)}, 2, 50)

	require.Equal(t, 2, m.Len())
	c, ok := m.Get(Trace{frame("f", 2), frame("main", 10)})
	require.True(t, ok)
	assert.Equal(t, Counts{Count: 5, Value: 150}, c)
	assert.Equal(t, Counts{Count: 6, Value: 151}, m.Total())

	// insertion order
	entries := m.Entries()
	assert.Equal(t, "f", entries[0].Trace[0].Function)
	assert.Equal(t, "g", entries[1].Trace[0].Function)
}

func TestSampleMapDistinguishesLines(t *testing.T) {
	m := NewSampleMap()
	m.Add(Trace{frame("f", 2)}, 1, 1)
	m.Add(Trace{frame("f", 3)}, 1, 1)
	assert.Equal(t, 2, m.Len())
}

func TestSampleMapClampsNegative(t *testing.T) {
	m := NewSampleMap()
	m.Add(Trace{frame("f", 2)}, -1, -5)
	c, _ := m.Get(Trace{frame("f", 2)})
	assert.Equal(t, Counts{}, c)
}

func TestNewTraceDepthCap(t *testing.T) {
	frames := make([]Frame, 200)
	for i := range frames {
		frames[i] = frame(fmt.Sprintf("fn%d", i), int64(i))
	}
	tr := NewTrace(frames)
	require.Len(t, tr, MaxStackDepth)
	assert.Equal(t, "fn0", tr[0].Function)
	assert.Equal(t, "fn127", tr[MaxStackDepth-1].Function)
}

func TestSampleMapTruncatesDeepTraces(t *testing.T) {
	deep := func(rootName string) Trace {
		frames := make(Trace, 150)
		for i := range frames {
			frames[i] = frame(fmt.Sprintf("fn%d", i), int64(i))
		}
		frames[149] = frame(rootName, 0)
		return frames
	}
	m := NewSampleMap()
	m.Add(deep("rootA"), 1, 1)
	m.Add(deep("rootB"), 1, 1)

	// both collapse onto the same 128 leaf-most frames and nothing spills over
	require.Equal(t, 1, m.Len())
	e := m.Entries()[0]
	assert.Len(t, e.Trace, MaxStackDepth)
	assert.Equal(t, Counts{Count: 2, Value: 2}, e.Counts)
}

func TestTraceKeyUnambiguous(t *testing.T) {
	a := Trace{{Function: "a", File: "bc"}}
	b := Trace{{Function: "ab", File: "c"}}
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestNilSampleMap(t *testing.T) {
	var m *SampleMap
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Entries())
	_, ok := m.Get(Trace{})
	assert.False(t, ok)
}

func TestErrorTaxonomy(t *testing.T) {
	assert.True(t, errors.Is(ErrHeapNotEnabled, ErrPreconditionFailed))
	assert.True(t, errors.Is(ErrHeapTracerMissing, ErrPreconditionFailed))
	assert.True(t, errors.Is(InvalidParam("seconds", "x", "not a number"), ErrInvalidRequest))
	assert.False(t, errors.Is(ErrUnknownProfile, ErrInvalidRequest))
}

func TestProfileKinds(t *testing.T) {
	k, ok := FromString("goroutine")
	require.True(t, ok)
	assert.Equal(t, ProfileKindThread, k.Canonical())
	_, ok = FromString("noexisto")
	assert.False(t, ok)
	assert.True(t, ProfileSettings{ValueType: SampleTypeGoroutine}.SingleValue())
}
