// Package collectors adapts runtime profiling sources into aggregated stack samples.
package collectors

import (
	"context"
	"time"

	"github.com/volcengine/apminsight-pprof-go/aipprof/builder"
	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
	"github.com/volcengine/apminsight-pprof-go/aipprof/utils"
)

const DefaultDuration = 30 * time.Second

type Options struct {
	Duration time.Duration // CPU and wall only; 0 means DefaultDuration
	GC       bool          // heap only; run a collection before the snapshot
}

func (o Options) duration() time.Duration {
	if o.Duration <= 0 {
		return DefaultDuration
	}
	return o.Duration
}

// Collector produces a Snapshot of one profile kind.
type Collector interface {
	Kind() common.ProfileKind
	Snapshot(ctx context.Context, opts Options) (*common.Snapshot, error)
}

// Collect takes a snapshot with c and encodes it.
func Collect(ctx context.Context, c Collector, opts Options) (*common.ProfileData, error) {
	snap, err := c.Snapshot(ctx, opts)
	if err != nil {
		return nil, err
	}
	data, err := builder.Build(snap)
	if err != nil {
		return nil, err
	}
	return &common.ProfileData{
		ID:          utils.NewProfileID(),
		Kind:        c.Kind(),
		Data:        data,
		SampleCount: snap.Samples.Len(),
	}, nil
}

// Registry maps profile kinds to collectors. It is filled once at startup.
type Registry struct {
	collectors map[common.ProfileKind]Collector
}

func NewRegistry(cs ...Collector) *Registry {
	r := &Registry{collectors: make(map[common.ProfileKind]Collector, len(cs))}
	for _, c := range cs {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Collector) {
	if c == nil {
		return
	}
	r.collectors[c.Kind()] = c
}

// Get returns the collector for k, resolving aliases. nil if none is registered.
func (r *Registry) Get(k common.ProfileKind) Collector {
	if c, ok := r.collectors[k.Canonical()]; ok {
		return c
	}
	return nil
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
