package blame

import "pprof-blame/internal/profile"

// Kind is the classification of one sample.
type Kind int

const (
	Unmatched Kind = iota
	ParentNotFound
	Blamed
	Excluded
)

func (k Kind) String() string {
	switch k {
	case Unmatched:
		return "unmatched"
	case ParentNotFound:
		return "parent-not-found"
	case Blamed:
		return "blamed"
	case Excluded:
		return "excluded"
	}
	return "unknown"
}

// Outcome is the verdict for one sample. Frame is set for Blamed and
// Excluded. Parent is set whenever the parent pattern matched, whatever the
// final Kind.
type Outcome struct {
	Kind          Kind
	Frame         profile.Frame
	ParentMatched bool
	Parent        profile.Frame
}
