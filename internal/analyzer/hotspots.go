package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"pprof-blame/internal/profile"
)

// Hotspot represents a function that accounts for a significant share of the
// profile's value.
type Hotspot struct {
	Function    string
	SourceFile  string
	Value       int64   // Total value of samples containing this function
	SampleCount int     // Number of samples containing this function
	Percentage  float64 // Percentage of the profile's total value
	Samples     []int   // Indices of samples containing this function
}

func hotspotKey(f profile.Frame) string {
	if f.File == "" {
		return f.Name
	}
	return f.File + "!" + f.Name
}

// FindHotspots ranks functions by the inclusive value of the samples they
// appear in, counting each function once per stack.
func FindHotspots(p *profile.Profile, valueIndex, topN int) []Hotspot {
	hotspotMap := make(map[string]*Hotspot)
	var total int64

	for i := range p.Samples {
		s := &p.Samples[i]
		stack := p.Stack(s)
		if stack.Len() == 0 {
			continue
		}
		value := s.Value(valueIndex)
		total += value

		// Avoid double-counting recursive frames in the same stack
		seen := make(map[string]bool)
		for d := 0; d < stack.Len(); d++ {
			frame := stack.At(d)
			key := hotspotKey(frame)
			if seen[key] {
				continue
			}
			seen[key] = true
			record(hotspotMap, key, frame, value, i)
		}
	}
	return rank(hotspotMap, total, topN)
}

// FindBottomFunctions ranks leaf functions, where the sampled work actually
// happens.
func FindBottomFunctions(p *profile.Profile, valueIndex, topN int) []Hotspot {
	bottomMap := make(map[string]*Hotspot)
	var total int64

	for i := range p.Samples {
		s := &p.Samples[i]
		stack := p.Stack(s)
		if stack.Len() == 0 {
			continue
		}
		value := s.Value(valueIndex)
		total += value

		frame := stack.At(0)
		record(bottomMap, hotspotKey(frame), frame, value, i)
	}
	return rank(bottomMap, total, topN)
}

func record(m map[string]*Hotspot, key string, frame profile.Frame, value int64, sample int) {
	hs, ok := m[key]
	if !ok {
		hs = &Hotspot{Function: frame.Name, SourceFile: frame.File}
		m[key] = hs
	}
	hs.Value += value
	hs.SampleCount++
	hs.Samples = append(hs.Samples, sample)
}

func rank(m map[string]*Hotspot, total int64, topN int) []Hotspot {
	hotspots := make([]Hotspot, 0, len(m))
	for _, hs := range m {
		if total > 0 {
			hs.Percentage = float64(hs.Value) / float64(total) * 100.0
		}
		hotspots = append(hotspots, *hs)
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Value != hotspots[j].Value {
			return hotspots[i].Value > hotspots[j].Value
		}
		return hotspots[i].Function < hotspots[j].Function
	})

	if topN > 0 && topN < len(hotspots) {
		return hotspots[:topN]
	}
	return hotspots
}

// FormatHotspot returns a human-readable string representation of a hotspot
func FormatHotspot(hs Hotspot, rank int, format func(int64) string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("#%d: %s\n", rank, hs.Function))
	sb.WriteString(fmt.Sprintf("    Value: %s (%.2f%%)\n", format(hs.Value), hs.Percentage))
	sb.WriteString(fmt.Sprintf("    Samples: %d\n", hs.SampleCount))

	if hs.SourceFile != "" && hs.SourceFile != "[unknown]" {
		sb.WriteString(fmt.Sprintf("    Source: %s\n", hs.SourceFile))
	}

	return sb.String()
}
