package common

import (
	"strconv"
	"strings"
)

// MaxStackDepth is the deepest trace kept. Deeper stacks lose their root-most frames.
const MaxStackDepth = 128

// Frame is one call frame. Equal field values mean the same frame.
type Frame struct {
	Function  string
	File      string
	FirstLine int64 // line the function starts at, 0 if unknown
	Line      int64 // line currently executing
}

// Trace is a call stack, leaf frame first.
type Trace []Frame

// NewTrace copies frames into a Trace capped at MaxStackDepth.
func NewTrace(frames []Frame) Trace {
	if len(frames) > MaxStackDepth {
		frames = frames[:MaxStackDepth]
	}
	t := make(Trace, len(frames))
	copy(t, frames)
	return t
}

// Key returns an immutable aggregation key for the trace.
func (t Trace) Key() string {
	var b strings.Builder
	for _, f := range t {
		b.WriteString(f.Function)
		b.WriteByte(0)
		b.WriteString(f.File)
		b.WriteByte(0)
		b.WriteString(strconv.FormatInt(f.FirstLine, 10))
		b.WriteByte(0)
		b.WriteString(strconv.FormatInt(f.Line, 10))
		b.WriteByte(1)
	}
	return b.String()
}

// Counts is the aggregated pair stored per trace.
type Counts struct {
	Count int64
	Value int64
}

type SampleEntry struct {
	Trace  Trace
	Counts Counts
}

// SampleMap is an insertion-ordered mapping from Trace to Counts.
// Adding an already present trace sums into the existing entry.
type SampleMap struct {
	index   map[string]int
	entries []SampleEntry
}

func NewSampleMap() *SampleMap {
	return &SampleMap{index: make(map[string]int)}
}

// Add merges (count, value) into the entry for t. Negative inputs count as 0.
func (m *SampleMap) Add(t Trace, count, value int64) {
	if count < 0 {
		count = 0
	}
	if value < 0 {
		value = 0
	}
	if len(t) > MaxStackDepth {
		t = t[:MaxStackDepth]
	}
	key := t.Key()
	if idx, ok := m.index[key]; ok {
		m.entries[idx].Counts.Count += count
		m.entries[idx].Counts.Value += value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, SampleEntry{
		Trace:  NewTrace(t),
		Counts: Counts{Count: count, Value: value},
	})
}

func (m *SampleMap) Get(t Trace) (Counts, bool) {
	if m == nil {
		return Counts{}, false
	}
	idx, ok := m.index[t.Key()]
	if !ok {
		return Counts{}, false
	}
	return m.entries[idx].Counts, true
}

func (m *SampleMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Range calls fn in insertion order until fn returns false.
func (m *SampleMap) Range(fn func(t Trace, c Counts) bool) {
	if m == nil {
		return
	}
	for _, e := range m.entries {
		if !fn(e.Trace, e.Counts) {
			return
		}
	}
}

// Entries returns a copy of the entries in insertion order.
func (m *SampleMap) Entries() []SampleEntry {
	if m == nil {
		return nil
	}
	out := make([]SampleEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Total sums counts and values over all entries.
func (m *SampleMap) Total() Counts {
	var c Counts
	m.Range(func(_ Trace, e Counts) bool {
		c.Count += e.Count
		c.Value += e.Value
		return true
	})
	return c
}
