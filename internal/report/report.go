// Package report renders blame results for people and for machines.
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"pprof-blame/internal/blame"
)

// Options controls rendering.
type Options struct {
	// Unit of the aggregated values. "nanoseconds" and "" print whole
	// milliseconds, any other unit is printed raw.
	Unit string
	// Frames adds the per-frame breakdown of every bucket.
	Frames bool
}

// FormatValue renders v in unit.
func FormatValue(v int64, unit string) string {
	switch unit {
	case "", "nanoseconds":
		return fmt.Sprintf("%d ms", v/1_000_000)
	}
	return fmt.Sprintf("%d %s", v, unit)
}

// FrameLine is one entry of a per-frame breakdown.
type FrameLine struct {
	Name    string `json:"name"`
	Samples int64  `json:"samples"`
	Value   int64  `json:"value"`
}

// SortedFrames orders a tally by value, then samples, descending, ties
// broken by name.
func SortedFrames(ft blame.FrameTally) []FrameLine {
	lines := make([]FrameLine, 0, len(ft))
	for name, c := range ft {
		lines = append(lines, FrameLine{Name: name, Samples: c.Samples, Value: c.Value})
	}
	slices.SortFunc(lines, func(a, b FrameLine) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Samples, a.Samples); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return lines
}

// Text renders the summary as WriteText does.
func Text(r *blame.Result, opts Options) string {
	var sb strings.Builder
	_ = WriteText(&sb, r, opts)
	return sb.String()
}

// WriteText writes the blamed share of the denominator, the excluded count
// when there is one, and optionally the frame breakdowns.
func WriteText(w io.Writer, r *blame.Result, opts Options) error {
	var sb strings.Builder

	label := "total"
	if r.UsesParent() {
		label = "parent"
	}
	d := r.Denominator()
	fmt.Fprintf(&sb, "%d blamed samples (%s) over %d %s samples (%s) (%.2f%%).\n",
		r.Blamed.Samples, FormatValue(r.Blamed.Value, opts.Unit),
		d.Samples, label, FormatValue(d.Value, opts.Unit),
		r.Percentage())

	if r.Excluded.Samples > 0 {
		fmt.Fprintf(&sb, "%d samples (%s) were excluded.\n",
			r.Excluded.Samples, FormatValue(r.Excluded.Value, opts.Unit))
	}

	if opts.Frames {
		writeFrames(&sb, "Blamed Frames", r.BlamedFrames, opts.Unit)
		if r.HasParent {
			writeFrames(&sb, "Parent Frames", r.ParentFrames, opts.Unit)
		}
		writeFrames(&sb, "Excluded Frames", r.ExcludedFrames, opts.Unit)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeFrames(sb *strings.Builder, title string, ft blame.FrameTally, unit string) {
	if len(ft) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, l := range SortedFrames(ft) {
		fmt.Fprintf(sb, "%s: %d samples, %s\n", l.Name, l.Samples, FormatValue(l.Value, unit))
	}
}

// Summary is the JSON form of a Result.
type Summary struct {
	Mode        string        `json:"mode"`
	Unit        string        `json:"unit,omitempty"`
	Percentage  float64       `json:"percentage"`
	Denominator string        `json:"denominator"`
	Result      *blame.Result `json:"result"`
	Blamed      []FrameLine   `json:"blamed_frames"`
	Parent      []FrameLine   `json:"parent_frames,omitempty"`
	Excluded    []FrameLine   `json:"excluded_frames"`
}

// NewSummary builds the JSON form of r.
func NewSummary(r *blame.Result, mode blame.Mode, unit string) Summary {
	s := Summary{
		Mode:        mode.String(),
		Unit:        unit,
		Percentage:  r.Percentage(),
		Denominator: "total",
		Result:      r,
		Blamed:      SortedFrames(r.BlamedFrames),
		Excluded:    SortedFrames(r.ExcludedFrames),
	}
	if r.UsesParent() {
		s.Denominator = "parent"
	}
	if r.HasParent {
		s.Parent = SortedFrames(r.ParentFrames)
	}
	return s
}

// WriteJSON writes the JSON summary of r, indented.
func WriteJSON(w io.Writer, r *blame.Result, mode blame.Mode, unit string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewSummary(r, mode, unit))
}
