// Package profile holds the format independent view of a sampling profile
// that every decoder produces and the blame analysis consumes.
package profile

import "time"

// InvalidIndex is the name given to frames whose string table index is out
// of range.
const InvalidIndex = "<invalid_index>"

// FrameID indexes a Frame inside the Registry that owns it.
type FrameID int

// Frame is a single function as it appears in a call stack.
type Frame struct {
	Name string
	File string // empty when the source format has no file attribution
}

// ValueType describes one column of sample values.
type ValueType struct {
	Type string
	Unit string
}

// Sample is one recorded observation. Locations are ordered leaf first.
type Sample struct {
	Locations []uint64
	Values    []int64
	Duration  time.Duration // summed tick time, zero for formats without it
}

// Value returns the value at index i, or 0 when the sample has no such column.
func (s *Sample) Value(i int) int64 {
	if i < 0 || i >= len(s.Values) {
		return 0
	}
	return s.Values[i]
}

// Profile is the decoded profile handed to the analysis.
type Profile struct {
	Format      string
	SampleTypes []ValueType
	Samples     []Sample
	Registry    *Registry
	Duration    time.Duration
}

// SampleTypeIndex returns the index of the value column named typ.
func (p *Profile) SampleTypeIndex(typ string) (int, bool) {
	for i, st := range p.SampleTypes {
		if st.Type == typ {
			return i, true
		}
	}
	return 0, false
}

// Unit returns the unit of value column i, or "" when unknown.
func (p *Profile) Unit(i int) string {
	if i < 0 || i >= len(p.SampleTypes) {
		return ""
	}
	return p.SampleTypes[i].Unit
}

// Stack returns the resolved, leaf first call stack of s.
func (p *Profile) Stack(s *Sample) Stack {
	return p.Registry.Resolve(s.Locations)
}
