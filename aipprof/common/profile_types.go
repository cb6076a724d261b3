package common

type ProfileKind string

const (
	ProfileKindCPU       ProfileKind = "profile" // route names follow the /debug/pprof convention
	ProfileKindWall      ProfileKind = "wall"
	ProfileKindHeap      ProfileKind = "heap"
	ProfileKindThread    ProfileKind = "thread"
	ProfileKindGoroutine ProfileKind = "goroutine" // alias of thread
)

var validProfileKinds = map[ProfileKind]struct{}{
	ProfileKindCPU: {}, ProfileKindWall: {}, ProfileKindHeap: {}, ProfileKindThread: {}, ProfileKindGoroutine: {},
}

func (k ProfileKind) ToString() string {
	return string(k)
}

// Canonical folds aliases onto the kind that collects them.
func (k ProfileKind) Canonical() ProfileKind {
	if k == ProfileKindGoroutine {
		return ProfileKindThread
	}
	return k
}

func FromString(s string) (ProfileKind, bool) {
	k := ProfileKind(s)
	if _, ok := validProfileKinds[k]; ok {
		return k, true
	}
	return "", false
}

// SampleType names one value slot of every sample, e.g. ("cpu", "nanoseconds").
type SampleType struct {
	Type string `json:"type"`
	Unit string `json:"unit"`
}

func (st SampleType) IsZero() bool {
	return st.Type == "" && st.Unit == ""
}

var (
	SampleTypeSamples      = SampleType{Type: "samples", Unit: "count"}
	SampleTypeCPU          = SampleType{Type: "cpu", Unit: "nanoseconds"}
	SampleTypeWall         = SampleType{Type: "wall", Unit: "nanoseconds"}
	SampleTypeInuseObjects = SampleType{Type: "inuse_objects", Unit: "count"}
	SampleTypeInuseSpace   = SampleType{Type: "inuse_space", Unit: "bytes"}
	SampleTypeGoroutine    = SampleType{Type: "goroutine", Unit: "count"}
)

// ProfileSettings describes how a SampleMap is laid out in the encoded profile.
type ProfileSettings struct {
	// CountType names the count slot. Zero value declares a single-slot
	// profile where only the count is emitted, under ValueType.
	CountType SampleType
	ValueType SampleType

	Period int64
	// ValueScale multiplies every measurement before encoding. 0 means 1.
	ValueScale int64

	TimeNanos     int64
	DurationNanos int64
}

func (s ProfileSettings) SingleValue() bool {
	return s.CountType.IsZero()
}

// Snapshot is what every collector hands to the builder.
type Snapshot struct {
	Samples  *SampleMap
	Settings ProfileSettings
}

// ProfileData is an encoded profile plus the metadata logged and returned with it.
type ProfileData struct {
	ID          string
	Kind        ProfileKind
	Data        []byte
	SampleCount int
}
