package collectors

import (
	"bytes"
	"fmt"
	"runtime"
	"runtime/pprof"

	"github.com/google/pprof/profile"
	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
)

// lookupProfile decodes the proto form of a named runtime profile.
// The runtime records goroutine and heap stacks up to 128 frames deep.
func lookupProfile(name string) (*profile.Profile, error) {
	rp := pprof.Lookup(name)
	if rp == nil {
		return nil, fmt.Errorf("runtime profile %q not found", name)
	}
	buf := bytes.NewBuffer(nil)
	if err := rp.WriteTo(buf, 0); err != nil {
		return nil, fmt.Errorf("write runtime %s profile: %w", name, err)
	}
	p, err := profile.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("decode runtime %s profile: %w", name, err)
	}
	return p, nil
}

// sampleIndex returns the value slot of st in p, or -1.
func sampleIndex(p *profile.Profile, st common.SampleType) int {
	for i, vt := range p.SampleType {
		if vt.Type == st.Type && vt.Unit == st.Unit {
			return i
		}
	}
	return -1
}

// traceOf expands a sample's locations into a leaf-first trace of at most
// common.MaxStackDepth frames. Inlined calls precede their physical caller.
func traceOf(s *profile.Sample) common.Trace {
	trace := make(common.Trace, 0, len(s.Location))
	for _, loc := range s.Location {
		for _, ln := range loc.Line {
			if len(trace) == common.MaxStackDepth {
				return trace
			}
			trace = append(trace, frameOfLine(ln))
		}
	}
	return trace
}

func frameOfLine(ln profile.Line) common.Frame {
	f := common.Frame{Function: "unknown", Line: ln.Line}
	if fn := ln.Function; fn != nil {
		f.Function = fn.Name
		f.File = fn.Filename
		f.FirstLine = fn.StartLine
	}
	return f
}

func hasFunction(trace common.Trace, name string) bool {
	for _, f := range trace {
		if f.Function == name {
			return true
		}
	}
	return false
}

// callerName returns the function name of the caller, used to hide a sampler's own goroutine.
func callerName() string {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return ""
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		return fn.Name()
	}
	return ""
}
