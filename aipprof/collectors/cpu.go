package collectors

import (
	"bytes"
	"context"
	"fmt"
	"runtime/pprof"
	"time"

	"github.com/google/pprof/profile"
	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
)

// CPUCollector samples on-CPU stacks with the runtime's SIGPROF profiler.
// The runtime allows a single CPU profile at a time; a concurrent call fails
// with the runtime's error.
type CPUCollector struct{}

func NewCPUCollector() *CPUCollector {
	return &CPUCollector{}
}

func (c *CPUCollector) Kind() common.ProfileKind {
	return common.ProfileKindCPU
}

func (c *CPUCollector) Snapshot(ctx context.Context, opts Options) (*common.Snapshot, error) {
	buf := bytes.NewBuffer(nil)
	start := time.Now()
	if err := pprof.StartCPUProfile(buf); err != nil {
		return nil, fmt.Errorf("could not enable CPU profiling: %w", err)
	}
	waitErr := sleep(ctx, opts.duration())
	pprof.StopCPUProfile()
	if waitErr != nil {
		return nil, waitErr
	}

	p, err := profile.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("decode runtime cpu profile: %w", err)
	}
	samples, err := samplesFromProfile(p, common.SampleTypeSamples, common.SampleTypeCPU)
	if err != nil {
		return nil, err
	}
	return &common.Snapshot{
		Samples: samples,
		Settings: common.ProfileSettings{
			CountType:     common.SampleTypeSamples,
			ValueType:     common.SampleTypeCPU,
			Period:        p.Period,
			TimeNanos:     start.UnixNano(),
			DurationNanos: time.Since(start).Nanoseconds(),
		},
	}, nil
}

// samplesFromProfile folds a decoded pprof profile into a SampleMap, reading
// the count and value slots by their declared types.
func samplesFromProfile(p *profile.Profile, countType, valueType common.SampleType) (*common.SampleMap, error) {
	countIdx, valueIdx := sampleIndex(p, countType), sampleIndex(p, valueType)
	if countIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("profile lacks sample types %s/%s and %s/%s",
			countType.Type, countType.Unit, valueType.Type, valueType.Unit)
	}

	samples := common.NewSampleMap()
	for _, s := range p.Sample {
		samples.Add(traceOf(s), s.Value[countIdx], s.Value[valueIdx])
	}
	return samples, nil
}
