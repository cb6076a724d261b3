package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volcengine/apminsight-pprof-go/aipprof"
	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := httptest.NewServer(aipprof.NewServer().Handler())
	t.Cleanup(ts.Close)
	c, err := New(ts.URL)
	require.NoError(t, err)
	return c
}

func TestFetchThread(t *testing.T) {
	c := newTestClient(t)
	p, err := c.Fetch(context.Background(), common.ProfileKindGoroutine, 0)
	require.NoError(t, err)
	assert.Equal(t, "goroutine", p.SampleType[0].Type)
	assert.NotEmpty(t, p.Sample)

	top, err := TopFunctions(p, "", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, top)
	assert.LessOrEqual(t, len(top), 5)
}

func TestFetchWall(t *testing.T) {
	c := newTestClient(t)
	p, err := c.Fetch(context.Background(), common.ProfileKindWall, 1)
	require.NoError(t, err)
	assert.Equal(t, "wall", p.DefaultSampleType)
}

func TestFetchErrors(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Fetch(context.Background(), common.ProfileKindHeap, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPreconditionFailed))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusPreconditionFailed, se.Code)

	_, err = c.Fetch(context.Background(), common.ProfileKind("noexisto"), 0)
	assert.True(t, errors.Is(err, common.ErrUnknownProfile))
}

func TestCmdline(t *testing.T) {
	args, err := newTestClient(t).Cmdline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, os.Args, args)
}

func TestNew(t *testing.T) {
	c, err := New("http://127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/debug/pprof", c.baseURL)

	c, err = New("http://127.0.0.1:8080/pprof/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/pprof", c.baseURL)

	_, err = New("127.0.0.1:8080")
	assert.Error(t, err)
}

func TestTopFunctions(t *testing.T) {
	leaf := &profile.Function{ID: 1, Name: "leaf"}
	mid := &profile.Function{ID: 2, Name: "mid"}
	root := &profile.Function{ID: 3, Name: "root"}
	lLeaf := &profile.Location{ID: 1, Line: []profile.Line{{Function: leaf}}}
	lMid := &profile.Location{ID: 2, Line: []profile.Line{{Function: mid}}}
	lRoot := &profile.Location{ID: 3, Line: []profile.Line{{Function: root}}}
	p := &profile.Profile{
		SampleType:        []*profile.ValueType{{Type: "samples", Unit: "count"}, {Type: "cpu", Unit: "nanoseconds"}},
		DefaultSampleType: "cpu",
		Sample: []*profile.Sample{
			{Location: []*profile.Location{lLeaf, lMid, lRoot}, Value: []int64{3, 30}},
			{Location: []*profile.Location{lMid, lRoot}, Value: []int64{1, 10}},
			{Location: []*profile.Location{lRoot, lRoot}, Value: []int64{6, 60}},
		},
	}

	top, err := TopFunctions(p, "", 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	want := []FunctionStat{
		{Function: "root", Flat: 60, Cum: 100, FlatPct: 60},
		{Function: "leaf", Flat: 30, Cum: 30, FlatPct: 30},
		{Function: "mid", Flat: 10, Cum: 40, FlatPct: 10},
	}
	for i, w := range want {
		assert.Equal(t, w.Function, top[i].Function)
		assert.Equal(t, w.Flat, top[i].Flat, w.Function)
		assert.Equal(t, w.Cum, top[i].Cum, w.Function)
		assert.InDelta(t, w.FlatPct, top[i].FlatPct, 1e-9, w.Function)
	}

	top, err = TopFunctions(p, "samples", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(6), top[0].Flat)

	_, err = TopFunctions(p, "inuse_space", 1)
	assert.Error(t, err)
}
