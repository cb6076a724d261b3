package builder

import "github.com/volcengine/apminsight-pprof-go/aipprof/common"

// Interner hands out sequential location IDs for distinct frames.
// IDs start at 1; 0 means unset. One Interner lives for one profile build.
type Interner struct {
	ids    map[common.Frame]uint64
	frames []common.Frame
}

func NewInterner() *Interner {
	return &Interner{ids: make(map[common.Frame]uint64)}
}

// Intern returns the ID of f, allocating the next one if f is new.
func (in *Interner) Intern(f common.Frame) (id uint64, added bool) {
	if id, ok := in.ids[f]; ok {
		return id, false
	}
	in.frames = append(in.frames, f)
	id = uint64(len(in.frames))
	in.ids[f] = id
	return id, true
}

// Frame returns the frame interned under id.
func (in *Interner) Frame(id uint64) (common.Frame, bool) {
	if id == 0 || id > uint64(len(in.frames)) {
		return common.Frame{}, false
	}
	return in.frames[id-1], true
}

func (in *Interner) Len() int {
	return len(in.frames)
}
