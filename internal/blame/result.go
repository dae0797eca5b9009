package blame

// Counter accumulates a number of samples and their summed value.
type Counter struct {
	Samples int64 `json:"samples"`
	Value   int64 `json:"value"`
}

func (c *Counter) add(value int64) {
	c.Samples++
	c.Value += value
}

func (c *Counter) merge(o Counter) {
	c.Samples += o.Samples
	c.Value += o.Value
}

// FrameTally maps a frame name to the samples attributed to it.
type FrameTally map[string]Counter

func (ft FrameTally) add(name string, value int64) {
	c := ft[name]
	c.add(value)
	ft[name] = c
}

func (ft FrameTally) merge(o FrameTally) {
	for name, oc := range o {
		c := ft[name]
		c.merge(oc)
		ft[name] = c
	}
}

// Result is the aggregate of an analysis. Every classified sample lands in
// exactly one of Blamed, Excluded, Unmatched and ParentNotFound; Parent
// additionally counts every sample whose parent pattern matched.
type Result struct {
	HasParent bool `json:"has_parent"`

	Total          Counter `json:"total"`
	Blamed         Counter `json:"blamed"`
	Excluded       Counter `json:"excluded"`
	Unmatched      Counter `json:"unmatched"`
	ParentNotFound Counter `json:"parent_not_found"`
	Parent         Counter `json:"parent"`

	BlamedFrames   FrameTally `json:"-"`
	ParentFrames   FrameTally `json:"-"`
	ExcludedFrames FrameTally `json:"-"`
}

// NewResult returns an empty accumulator. hasParent records whether a
// parent pattern was configured.
func NewResult(hasParent bool) *Result {
	return &Result{
		HasParent:      hasParent,
		BlamedFrames:   make(FrameTally),
		ParentFrames:   make(FrameTally),
		ExcludedFrames: make(FrameTally),
	}
}

// Record folds the outcome of one non-empty sample into r.
func (r *Result) Record(o Outcome, value int64) {
	r.Total.add(value)

	if o.ParentMatched {
		r.Parent.add(value)
		r.ParentFrames.add(o.Parent.Name, value)
	}

	switch o.Kind {
	case Blamed:
		r.Blamed.add(value)
		r.BlamedFrames.add(o.Frame.Name, value)
	case Excluded:
		r.Excluded.add(value)
		r.ExcludedFrames.add(o.Frame.Name, value)
	case ParentNotFound:
		r.ParentNotFound.add(value)
	default:
		r.Unmatched.add(value)
	}
}

// Merge adds o into r. Merging is associative and commutative, so shards can
// be combined in any order.
func (r *Result) Merge(o *Result) {
	r.HasParent = r.HasParent || o.HasParent
	r.Total.merge(o.Total)
	r.Blamed.merge(o.Blamed)
	r.Excluded.merge(o.Excluded)
	r.Unmatched.merge(o.Unmatched)
	r.ParentNotFound.merge(o.ParentNotFound)
	r.Parent.merge(o.Parent)
	r.BlamedFrames.merge(o.BlamedFrames)
	r.ParentFrames.merge(o.ParentFrames)
	r.ExcludedFrames.merge(o.ExcludedFrames)
}

// UsesParent reports whether the parent bucket is the percentage
// denominator, which requires at least one parent match.
func (r *Result) UsesParent() bool {
	return r.Parent.Samples > 0
}

// Denominator returns the counter the percentage is computed against.
func (r *Result) Denominator() Counter {
	if r.UsesParent() {
		return r.Parent
	}
	return r.Total
}

// Percentage is the blamed value as a share of the denominator, or 0 when
// the denominator value is 0.
func (r *Result) Percentage() float64 {
	d := r.Denominator()
	if d.Value == 0 {
		return 0
	}
	return float64(r.Blamed.Value) / float64(d.Value) * 100
}
