// Package testutils builds profile fixtures for tests.
package testutils

import (
	"bytes"
	"testing"

	gprofile "github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"
)

// StackSample is one fixture sample: function names leaf first and its values.
type StackSample struct {
	Stack  []string
	Values []int64
}

// NewPprof builds a CPU style pprof profile whose samples carry the given
// stacks. Each distinct function name gets one function and one location.
func NewPprof(samples ...StackSample) *gprofile.Profile {
	p := &gprofile.Profile{
		SampleType: []*gprofile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "cpu", Unit: "nanoseconds"},
		},
		PeriodType:    &gprofile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:        10_000_000,
		DurationNanos: 2_000_000_000,
	}

	locations := make(map[string]*gprofile.Location)
	for _, s := range samples {
		locs := make([]*gprofile.Location, 0, len(s.Stack))
		for _, name := range s.Stack {
			loc, ok := locations[name]
			if !ok {
				fn := &gprofile.Function{
					ID:       uint64(len(p.Function) + 1),
					Name:     name,
					Filename: name + ".go",
				}
				p.Function = append(p.Function, fn)
				loc = &gprofile.Location{
					ID:   uint64(len(p.Location) + 1),
					Line: []gprofile.Line{{Function: fn, Line: 1}},
				}
				p.Location = append(p.Location, loc)
				locations[name] = loc
			}
			locs = append(locs, loc)
		}
		p.Sample = append(p.Sample, &gprofile.Sample{Location: locs, Value: s.Values})
	}
	return p
}

// EncodePprof serializes p, gzip compressed when compressed is set.
func EncodePprof(t testing.TB, p *gprofile.Profile, compressed bool) []byte {
	t.Helper()

	var buf bytes.Buffer
	if compressed {
		require.NoError(t, p.Write(&buf))
	} else {
		require.NoError(t, p.WriteUncompressed(&buf))
	}
	return buf.Bytes()
}
