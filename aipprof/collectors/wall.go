package collectors

import (
	"context"
	"sync"
	"time"

	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
)

// DefaultWallHz is the wall sampling rate. 99 rather than 100 keeps the
// sampler from locking step with periodic work in the profiled program.
const DefaultWallHz = 99

var (
	wallSampler     *WallSampler
	wallSamplerOnce sync.Once
)

// RegisterWallSampler creates the process-wide wall sampler on first call.
// Later calls return the existing sampler and ignore hz.
func RegisterWallSampler(hz int) *WallSampler {
	wallSamplerOnce.Do(func() {
		wallSampler = newWallSampler(hz)
	})
	return wallSampler
}

// WallSampler periodically records every goroutine's stack, on-CPU or not.
// One collection runs at a time; other callers queue for the slot.
type WallSampler struct {
	hz   int
	slot chan struct{}
}

func newWallSampler(hz int) *WallSampler {
	if hz <= 0 {
		hz = DefaultWallHz
	}
	return &WallSampler{
		hz:   hz,
		slot: make(chan struct{}, 1),
	}
}

func (s *WallSampler) Hz() int {
	return s.hz
}

func (s *WallSampler) period() int64 {
	return int64(time.Second) / int64(s.hz)
}

// Sample records stacks for d and returns {trace: (ticks seen, ticks*period ns)}.
func (s *WallSampler) Sample(ctx context.Context, d time.Duration) (*common.SampleMap, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.slot }()

	self := callerName()
	period := s.period()
	samples := common.NewSampleMap()

	ticker := time.NewTicker(time.Second / time.Duration(s.hz))
	defer ticker.Stop()
	deadline := time.NewTimer(d)
	defer deadline.Stop()

	for {
		select {
		case <-ticker.C:
			if err := addGoroutineSamples(samples, self, period); err != nil {
				return nil, err
			}
		case <-deadline.C:
			return samples, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// WallCollector adapts a WallSampler to the Collector contract.
type WallCollector struct {
	sampler *WallSampler
}

func NewWallCollector(sampler *WallSampler) *WallCollector {
	return &WallCollector{sampler: sampler}
}

func (c *WallCollector) Kind() common.ProfileKind {
	return common.ProfileKindWall
}

func (c *WallCollector) Snapshot(ctx context.Context, opts Options) (*common.Snapshot, error) {
	start := time.Now()
	samples, err := c.sampler.Sample(ctx, opts.duration())
	if err != nil {
		return nil, err
	}
	return &common.Snapshot{
		Samples: samples,
		Settings: common.ProfileSettings{
			CountType:     common.SampleTypeSamples,
			ValueType:     common.SampleTypeWall,
			Period:        c.sampler.period(),
			TimeNanos:     start.UnixNano(),
			DurationNanos: time.Since(start).Nanoseconds(),
		},
	}, nil
}
