package collectors

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
)

// HeapStat is one allocation site of a heap snapshot.
type HeapStat struct {
	Traceback common.Trace
	Count     int64 // live objects
	Size      int64 // live bytes
}

type HeapSnapshot struct {
	SampleRate int64
	Stats      []HeapStat
}

// HeapTracer is the allocation tracer a heap profile is read from.
type HeapTracer interface {
	IsTracing() bool
	TakeSnapshot() (*HeapSnapshot, error)
}

// HeapCollector groups a tracer snapshot by traceback. A nil tracer means
// heap profiling was never made available to this process.
type HeapCollector struct {
	tracer HeapTracer
}

func NewHeapCollector(tracer HeapTracer) *HeapCollector {
	return &HeapCollector{tracer: tracer}
}

func (c *HeapCollector) Kind() common.ProfileKind {
	return common.ProfileKindHeap
}

func (c *HeapCollector) Snapshot(_ context.Context, opts Options) (*common.Snapshot, error) {
	if opts.GC {
		runtime.GC()
	}
	if c.tracer == nil {
		return nil, common.ErrHeapTracerMissing
	}
	if !c.tracer.IsTracing() {
		return nil, common.ErrHeapNotEnabled
	}
	now := time.Now()
	snap, err := c.tracer.TakeSnapshot()
	if err != nil {
		return nil, err
	}
	return &common.Snapshot{
		Samples: GroupHeapStats(snap.Stats),
		Settings: common.ProfileSettings{
			CountType: common.SampleTypeInuseObjects,
			ValueType: common.SampleTypeInuseSpace,
			Period:    snap.SampleRate,
			TimeNanos: now.UnixNano(),
		},
	}, nil
}

// GroupHeapStats sums count and size per distinct traceback.
func GroupHeapStats(stats []HeapStat) *common.SampleMap {
	samples := common.NewSampleMap()
	for _, st := range stats {
		samples.Add(st.Traceback, st.Count, st.Size)
	}
	return samples
}

// RuntimeHeapTracer reads in-use allocations from the runtime heap profile.
// Counts are scaled from the sampled records to estimated totals.
// Tracing is off until Start is called.
type RuntimeHeapTracer struct {
	mu      sync.Mutex
	tracing bool
	rate    int
}

func NewRuntimeHeapTracer() *RuntimeHeapTracer {
	return &RuntimeHeapTracer{}
}

// Start sets the runtime sampling rate (bytes between samples) and enables snapshots.
// rate <= 0 keeps the current runtime.MemProfileRate.
func (t *RuntimeHeapTracer) Start(rate int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rate > 0 {
		runtime.MemProfileRate = rate
	}
	t.rate = runtime.MemProfileRate
	t.tracing = t.rate > 0
}

// Stop disables snapshots. Records already sampled by the runtime are kept.
func (t *RuntimeHeapTracer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracing = false
}

func (t *RuntimeHeapTracer) IsTracing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracing
}

// TakeSnapshot reflects the heap as of the last completed GC cycle.
func (t *RuntimeHeapTracer) TakeSnapshot() (*HeapSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := lookupProfile("heap")
	if err != nil {
		return nil, err
	}
	countIdx := sampleIndex(p, common.SampleTypeInuseObjects)
	sizeIdx := sampleIndex(p, common.SampleTypeInuseSpace)
	if countIdx < 0 || sizeIdx < 0 {
		return nil, errors.New("heap profile lacks in-use sample types")
	}

	snap := &HeapSnapshot{
		SampleRate: p.Period,
		Stats:      make([]HeapStat, 0, len(p.Sample)),
	}
	for _, s := range p.Sample {
		count, size := s.Value[countIdx], s.Value[sizeIdx]
		if count == 0 && size == 0 {
			continue
		}
		snap.Stats = append(snap.Stats, HeapStat{
			Traceback: traceOf(s),
			Count:     count,
			Size:      size,
		})
	}
	return snap, nil
}
