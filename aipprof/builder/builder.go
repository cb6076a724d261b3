// Package builder turns aggregated stack samples into gzip-compressed pprof profiles.
package builder

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/pprof/profile"
	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
)

type functionKey struct {
	name string
	file string
}

// Builder accumulates one profile. It is single use and not safe for concurrent use.
type Builder struct {
	p       *profile.Profile
	mapping *profile.Mapping

	locations *Interner
	locByID   map[uint64]*profile.Location
	functions map[functionKey]*profile.Function
}

func New() *Builder {
	m := &profile.Mapping{
		ID:              1,
		HasFunctions:    true,
		HasFilenames:    true,
		HasLineNumbers:  true,
		HasInlineFrames: true,
	}
	return &Builder{
		p:         &profile.Profile{Mapping: []*profile.Mapping{m}},
		mapping:   m,
		locations: NewInterner(),
		locByID:   make(map[uint64]*profile.Location),
		functions: make(map[functionKey]*profile.Function),
	}
}

// Build populates a fresh Builder from snap and emits it.
func Build(snap *common.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	b := New()
	b.Populate(snap.Samples, snap.Settings)
	return b.Emit()
}

// Populate adds one sample per trace of samples. Samples are laid out in
// trace-key order so equal input always encodes to equal bytes.
func (b *Builder) Populate(samples *common.SampleMap, s common.ProfileSettings) {
	valueType := &profile.ValueType{Type: s.ValueType.Type, Unit: s.ValueType.Unit}
	if s.SingleValue() {
		b.p.SampleType = []*profile.ValueType{valueType}
	} else {
		b.p.SampleType = []*profile.ValueType{
			{Type: s.CountType.Type, Unit: s.CountType.Unit},
			valueType,
		}
	}
	b.p.DefaultSampleType = s.ValueType.Type
	b.p.PeriodType = &profile.ValueType{Type: s.ValueType.Type, Unit: s.ValueType.Unit}
	b.p.Period = s.Period
	b.p.TimeNanos = s.TimeNanos
	b.p.DurationNanos = s.DurationNanos

	scale := s.ValueScale
	if scale == 0 {
		scale = 1
	}

	entries := samples.Entries()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Trace.Key()
	}
	sort.Sort(byKey{entries: entries, keys: keys})

	for _, e := range entries {
		sample := &profile.Sample{Location: make([]*profile.Location, 0, len(e.Trace))}
		for _, f := range e.Trace {
			sample.Location = append(sample.Location, b.location(f))
		}
		if s.SingleValue() {
			sample.Value = []int64{e.Counts.Count}
		} else {
			sample.Value = []int64{e.Counts.Count, e.Counts.Value * scale}
		}
		b.p.Sample = append(b.p.Sample, sample)
	}
}

func (b *Builder) location(f common.Frame) *profile.Location {
	id, added := b.locations.Intern(f)
	if !added {
		return b.locByID[id]
	}
	loc := &profile.Location{
		ID:      id,
		Mapping: b.mapping,
		Line:    []profile.Line{{Function: b.function(f), Line: f.Line}},
	}
	b.locByID[id] = loc
	b.p.Location = append(b.p.Location, loc)
	return loc
}

func (b *Builder) function(f common.Frame) *profile.Function {
	key := functionKey{name: f.Function, file: f.File}
	if fn, ok := b.functions[key]; ok {
		return fn
	}
	fn := &profile.Function{
		ID:         uint64(len(b.p.Function) + 1),
		Name:       f.Function,
		SystemName: f.Function,
		Filename:   f.File,
		StartLine:  f.FirstLine,
	}
	b.functions[key] = fn
	b.p.Function = append(b.p.Function, fn)
	return fn
}

// Profile exposes the profile built so far.
func (b *Builder) Profile() *profile.Profile {
	return b.p
}

// Emit validates the profile and returns its gzip-compressed protobuf encoding.
func (b *Builder) Emit() ([]byte, error) {
	if err := b.p.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	buf := bytes.NewBuffer(nil)
	if err := b.p.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type byKey struct {
	entries []common.SampleEntry
	keys    []string
}

func (s byKey) Len() int           { return len(s.entries) }
func (s byKey) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s byKey) Swap(i, j int) {
	s.entries[i], s.entries[j] = s.entries[j], s.entries[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}
