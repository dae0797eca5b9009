package blame

import (
	"errors"
	"fmt"

	"pprof-blame/internal/profile"
)

// ErrParentUnsupported is returned when a toggle mode is combined with a
// parent pattern.
var ErrParentUnsupported = errors.New("parent pattern requires windowed mode")

// Mode selects the classification algorithm.
type Mode int

const (
	// Windowed searches the leaf side of the first parent match for the
	// innermost blame frame and excludes it when an exclude frame sits
	// between it and the leaf.
	Windowed Mode = iota
	// ToggleStrict walks root to leaf flipping a blamed flag. The first
	// exclude that cancels a blame ends the walk.
	ToggleStrict
	// TogglePermissive is ToggleStrict without the early exit, so a later
	// blame frame can blame the sample again.
	TogglePermissive
)

var modeNames = map[Mode]string{
	Windowed:         "windowed",
	ToggleStrict:     "toggle-strict",
	TogglePermissive: "toggle-permissive",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Classifier decides the Outcome of one resolved, leaf first stack.
// Implementations are stateless across calls.
type Classifier interface {
	Classify(stack profile.Stack, t Tracer) Outcome
	Patterns() PatternSet
	Mode() Mode
}

// NewClassifier returns the classifier for mode.
func NewClassifier(mode Mode, ps PatternSet) (Classifier, error) {
	if ps.Blame == nil {
		return nil, ErrNoBlamePattern
	}
	switch mode {
	case Windowed:
		return &windowed{ps: ps}, nil
	case ToggleStrict, TogglePermissive:
		if ps.Parent != nil {
			return nil, fmt.Errorf("%v: %w", mode, ErrParentUnsupported)
		}
		return &toggle{ps: ps, strict: mode == ToggleStrict}, nil
	}
	return nil, fmt.Errorf("unknown mode %v", mode)
}

type windowed struct {
	ps PatternSet
}

func (w *windowed) Patterns() PatternSet { return w.ps }

func (w *windowed) Mode() Mode { return Windowed }

func (w *windowed) Classify(s profile.Stack, t Tracer) (out Outcome) {
	defer func() { t.Trace(Event{Kind: Verdict, Outcome: out}) }()

	window := s.Len()
	if w.ps.Parent != nil {
		p := find(w.ps.Parent, s, s.Len())
		if p < 0 {
			out.Kind = ParentNotFound
			return out
		}
		out.ParentMatched = true
		out.Parent = s.At(p)
		t.Trace(Event{Kind: ParentMatched, Depth: p, Frame: out.Parent})
		// only the parent's descendants, strictly closer to the leaf
		window = p
	}

	b := find(w.ps.Blame, s, window)
	if b < 0 {
		out.Kind = Unmatched
		return out
	}
	out.Frame = s.At(b)
	t.Trace(Event{Kind: BlameMatched, Depth: b, Frame: out.Frame})

	if w.ps.Exclude != nil {
		if e := find(w.ps.Exclude, s, b); e >= 0 {
			t.Trace(Event{Kind: ExcludeMatched, Depth: e, Frame: s.At(e)})
			out.Kind = Excluded
			return out
		}
	}
	out.Kind = Blamed
	return out
}

type toggle struct {
	ps     PatternSet
	strict bool
}

func (tg *toggle) Patterns() PatternSet { return tg.ps }

func (tg *toggle) Mode() Mode {
	if tg.strict {
		return ToggleStrict
	}
	return TogglePermissive
}

func (tg *toggle) Classify(s profile.Stack, t Tracer) (out Outcome) {
	defer func() { t.Trace(Event{Kind: Verdict, Outcome: out}) }()

	blamed := false
	var frame profile.Frame
	for i := s.Len() - 1; i >= 0; i-- {
		f := s.At(i)
		t.Trace(Event{Kind: FrameVisited, Depth: i, Frame: f})

		if blamed && tg.ps.Exclude != nil && matches(tg.ps.Exclude, f) {
			blamed = false
			t.Trace(Event{Kind: BlameCancelled, Depth: i, Frame: f})
			if tg.strict {
				break
			}
			continue
		}
		if matches(tg.ps.Blame, f) {
			blamed = true
			frame = f
			t.Trace(Event{Kind: BlameMatched, Depth: i, Frame: f})
		}
	}

	if blamed {
		out.Kind = Blamed
		out.Frame = frame
	}
	return out
}
