package collectors

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
)

// ThreadCollector snapshots the stacks of all live goroutines.
// Every goroutine counts once; goroutines parked on the same stack share one sample.
type ThreadCollector struct{}

func NewThreadCollector() *ThreadCollector {
	return &ThreadCollector{}
}

func (c *ThreadCollector) Kind() common.ProfileKind {
	return common.ProfileKindThread
}

func (c *ThreadCollector) Snapshot(_ context.Context, _ Options) (*common.Snapshot, error) {
	now := time.Now()
	samples := common.NewSampleMap()
	if err := addGoroutineSamples(samples, "", 1); err != nil {
		return nil, err
	}
	return &common.Snapshot{
		Samples: samples,
		Settings: common.ProfileSettings{
			ValueType: common.SampleTypeGoroutine,
			Period:    1,
			TimeNanos: now.UnixNano(),
		},
	}, nil
}

// addGoroutineSamples adds every live goroutine stack to samples as
// (goroutines, goroutines*period). Stacks running the function named hide are skipped.
func addGoroutineSamples(samples *common.SampleMap, hide string, period int64) error {
	p, err := lookupProfile("goroutine")
	if err != nil {
		return err
	}
	idx := sampleIndex(p, common.SampleTypeGoroutine)
	if idx < 0 {
		return fmt.Errorf("goroutine profile lacks sample type %s/%s",
			common.SampleTypeGoroutine.Type, common.SampleTypeGoroutine.Unit)
	}
	for _, s := range p.Sample {
		trace := traceOf(s)
		if len(trace) == 0 || (hide != "" && hasFunction(trace, hide)) {
			continue
		}
		n := s.Value[idx]
		samples.Add(trace, n, n*period)
	}
	return nil
}

// StackDump returns the text stack dump of all goroutines.
func StackDump() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
