package testutil

import (
	"bytes"
	"os"
	"testing"

	"github.com/google/pprof/profile"
)

// Frame is one call stack entry of a test sample. Functions are placed in
// app/<Func>.go.
type Frame struct {
	Func string
	Line int64
}

// Sample is a call stack, leaf first like pprof, and its value.
type Sample struct {
	Stack []Frame
	Value int64
}

// Stack builds frames without line numbers from function names, leaf first.
func Stack(funcs ...string) []Frame {
	frames := make([]Frame, len(funcs))
	for i, f := range funcs {
		frames[i] = Frame{Func: f}
	}
	return frames
}

// NewProfile builds a valid single sample type profile.
func NewProfile(t *testing.T, sampleType string, samples ...Sample) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: sampleType, Unit: "nanoseconds"}},
		PeriodType: &profile.ValueType{Type: sampleType, Unit: "nanoseconds"},
		Period:     1,
	}
	funcs := map[string]*profile.Function{}
	for _, s := range samples {
		locs := make([]*profile.Location, 0, len(s.Stack))
		for _, f := range s.Stack {
			fn, ok := funcs[f.Func]
			if !ok {
				fn = &profile.Function{
					ID:         uint64(len(funcs) + 1),
					Name:       f.Func,
					SystemName: f.Func,
					Filename:   "app/" + f.Func + ".go",
				}
				funcs[f.Func] = fn
				p.Function = append(p.Function, fn)
			}
			loc := &profile.Location{
				ID:   uint64(len(p.Location) + 1),
				Line: []profile.Line{{Function: fn, Line: f.Line}},
			}
			p.Location = append(p.Location, loc)
			locs = append(locs, loc)
		}
		p.Sample = append(p.Sample, &profile.Sample{Location: locs, Value: []int64{s.Value}})
	}
	if err := p.CheckValid(); err != nil {
		t.Fatalf("invalid test profile: %v", err)
	}
	return p
}

// EncodeProfile returns p in the gzipped pprof wire format.
func EncodeProfile(t *testing.T, p *profile.Profile) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		t.Fatalf("failed to encode profile: %v", err)
	}
	return buf.Bytes()
}

// WriteProfile writes p to path and returns path.
func WriteProfile(t *testing.T, path string, p *profile.Profile) string {
	t.Helper()
	if err := os.WriteFile(path, EncodeProfile(t, p), 0o600); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}
	return path
}
