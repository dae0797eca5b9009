// Package analyzer computes whole-profile views: hotspots, leaf functions
// and stack statistics.
package analyzer

import (
	"math"

	"pprof-blame/internal/profile"
)

// ProfileStatistics contains comprehensive statistics about the profile
type ProfileStatistics struct {
	TotalValue        int64
	TotalSamples      int
	EmptySamples      int // samples whose stack resolved to no frames
	TotalFrames       int
	AverageStackDepth float64
	MaxStackDepth     int
	MinStackDepth     int
	UniqueFunctions   int
	UniqueFiles       int
}

// ComputeStatistics calculates comprehensive statistics for the profile
func ComputeStatistics(p *profile.Profile, valueIndex int) ProfileStatistics {
	stats := ProfileStatistics{
		TotalSamples: len(p.Samples),
		TotalFrames:  p.Registry.Len(),
	}

	if stats.TotalSamples == 0 {
		return stats
	}

	totalDepth := 0
	stats.MinStackDepth = math.MaxInt32

	functionSet := make(map[string]bool)
	fileSet := make(map[string]bool)

	for i := range p.Samples {
		s := &p.Samples[i]
		stack := p.Stack(s)
		depth := stack.Len()
		if depth == 0 {
			stats.EmptySamples++
			continue
		}
		stats.TotalValue += s.Value(valueIndex)
		totalDepth += depth

		stats.MaxStackDepth = max(stats.MaxStackDepth, depth)
		stats.MinStackDepth = min(stats.MinStackDepth, depth)

		for d := 0; d < depth; d++ {
			frame := stack.At(d)
			functionSet[frame.Name] = true
			if frame.File != "" {
				fileSet[frame.File] = true
			}
		}
	}

	if resolved := stats.TotalSamples - stats.EmptySamples; resolved > 0 {
		stats.AverageStackDepth = float64(totalDepth) / float64(resolved)
	}
	stats.UniqueFunctions = len(functionSet)
	stats.UniqueFiles = len(fileSet)

	if stats.MinStackDepth == math.MaxInt32 {
		stats.MinStackDepth = 0
	}

	return stats
}
