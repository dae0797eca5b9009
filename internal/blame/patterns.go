// Package blame classifies profile samples by where a blamed function sits
// in their call stack and aggregates the matched cost.
package blame

import (
	"errors"
	"fmt"
	"regexp"

	"pprof-blame/internal/profile"
)

// ErrNoBlamePattern is returned when the mandatory blame pattern is empty.
var ErrNoBlamePattern = errors.New("blame pattern is required")

// PatternSet holds the compiled patterns of one analysis. Parent and Exclude
// are nil when not configured.
type PatternSet struct {
	Blame   *regexp.Regexp
	Parent  *regexp.Regexp
	Exclude *regexp.Regexp
}

// Compile builds a PatternSet. Empty parent or exclude strings leave the
// corresponding pattern unset.
func Compile(blame, parent, exclude string) (PatternSet, error) {
	var ps PatternSet
	if blame == "" {
		return ps, ErrNoBlamePattern
	}

	var err error
	if ps.Blame, err = regexp.Compile(blame); err != nil {
		return ps, fmt.Errorf("invalid blame pattern: %w", err)
	}
	if parent != "" {
		if ps.Parent, err = regexp.Compile(parent); err != nil {
			return ps, fmt.Errorf("invalid parent pattern: %w", err)
		}
	}
	if exclude != "" {
		if ps.Exclude, err = regexp.Compile(exclude); err != nil {
			return ps, fmt.Errorf("invalid exclude pattern: %w", err)
		}
	}
	return ps, nil
}

// matches reports whether re matches the frame's name or, when present, its
// file name.
func matches(re *regexp.Regexp, f profile.Frame) bool {
	if re.MatchString(f.Name) {
		return true
	}
	return f.File != "" && re.MatchString(f.File)
}

// find returns the first index below limit whose frame matches re, or -1.
func find(re *regexp.Regexp, s profile.Stack, limit int) int {
	for i := 0; i < limit; i++ {
		if matches(re, s.At(i)) {
			return i
		}
	}
	return -1
}
