// Package cpuprofile decodes V8 / Chrome DevTools .cpuprofile JSON files.
//
// A cpuprofile is a call tree of nodes plus a tick stream: samples[i] is the
// id of the node executing at tick i and timeDeltas[i] the microseconds since
// the previous tick. Ticks are grouped per node, so every node that was hit
// becomes one Sample whose value is its summed tick time in nanoseconds.
package cpuprofile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pprof-blame/internal/profile"
)

// Format is the name reported in profile.Profile.Format.
const Format = "cpuprofile"

type callFrame struct {
	FunctionName string `json:"functionName"`
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url"`
	LineNumber   int64  `json:"lineNumber"`
	ColumnNumber int64  `json:"columnNumber"`
}

type node struct {
	ID        *int64     `json:"id"`
	CallFrame *callFrame `json:"callFrame"`
	HitCount  int64      `json:"hitCount"`
	Children  []int64    `json:"children"`
	Parent    *int64     `json:"parent"`
}

type file struct {
	Nodes      *[]node  `json:"nodes"`
	StartTime  int64    `json:"startTime"`
	EndTime    int64    `json:"endTime"`
	Samples    *[]int64 `json:"samples"`
	TimeDeltas []int64  `json:"timeDeltas"`
}

var (
	errNoNodes   = errors.New("missing nodes")
	errNoSamples = errors.New("missing samples")
)

// Decode parses a cpuprofile document.
func Decode(data []byte) (*profile.Profile, error) {
	var f file
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("malformed cpuprofile: %w", err)
	}
	if f.Nodes == nil {
		return nil, fmt.Errorf("malformed cpuprofile: %w", errNoNodes)
	}
	if f.Samples == nil {
		return nil, fmt.Errorf("malformed cpuprofile: %w", errNoSamples)
	}
	samples := *f.Samples
	if len(f.TimeDeltas) != 0 && len(f.TimeDeltas) != len(samples) {
		return nil, fmt.Errorf("malformed cpuprofile: %d time deltas for %d samples",
			len(f.TimeDeltas), len(samples))
	}

	reg := profile.NewRegistry()
	parents := make(map[uint64]uint64)
	for i, n := range *f.Nodes {
		if n.ID == nil || *n.ID < 0 {
			return nil, fmt.Errorf("malformed cpuprofile: node %d has no valid id", i)
		}
		if n.CallFrame == nil {
			return nil, fmt.Errorf("malformed cpuprofile: node %d has no callFrame", *n.ID)
		}
		id := uint64(*n.ID)
		reg.AddFunction(id, profile.Frame{Name: n.CallFrame.FunctionName, File: n.CallFrame.URL})
		reg.AddLocation(id, id)
		for _, c := range n.Children {
			if c < 0 {
				return nil, fmt.Errorf("malformed cpuprofile: node %d has negative child id", *n.ID)
			}
			parents[uint64(c)] = id
		}
		if n.Parent != nil {
			if *n.Parent < 0 {
				return nil, fmt.Errorf("malformed cpuprofile: node %d has negative parent id", *n.ID)
			}
			parents[id] = uint64(*n.Parent)
		}
	}

	type tally struct {
		ticks int64
		delta int64
	}
	hits := make(map[uint64]*tally)
	order := make([]uint64, 0)
	for i, s := range samples {
		if s < 0 {
			return nil, fmt.Errorf("malformed cpuprofile: negative node id at sample %d", i)
		}
		id := uint64(s)
		t, ok := hits[id]
		if !ok {
			t = &tally{}
			hits[id] = t
			order = append(order, id)
		}
		t.ticks++
		if len(f.TimeDeltas) != 0 {
			t.delta += f.TimeDeltas[i]
		}
	}

	out := &profile.Profile{
		Format: Format,
		SampleTypes: []profile.ValueType{
			{Type: "wall", Unit: "nanoseconds"},
			{Type: "samples", Unit: "count"},
		},
		Samples:  make([]profile.Sample, 0, len(order)),
		Registry: reg,
		Duration: time.Duration(f.EndTime-f.StartTime) * time.Microsecond,
	}
	limit := len(*f.Nodes)
	for _, id := range order {
		t := hits[id]
		d := time.Duration(t.delta) * time.Microsecond
		out.Samples = append(out.Samples, profile.Sample{
			Locations: ancestry(id, parents, limit),
			Values:    []int64{d.Nanoseconds(), t.ticks},
			Duration:  d,
		})
	}
	return out, nil
}

// ancestry walks parent links from id to the root, leaf first. limit bounds
// the walk so a cyclic tree cannot loop forever.
func ancestry(id uint64, parents map[uint64]uint64, limit int) []uint64 {
	chain := []uint64{id}
	for len(chain) <= limit {
		p, ok := parents[id]
		if !ok {
			break
		}
		chain = append(chain, p)
		id = p
	}
	return chain
}
