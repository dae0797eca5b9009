package blame_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pprof-blame/internal/blame"
	"pprof-blame/internal/profile"
)

// newProfile registers one function per distinct name and one sample per
// stack, with values taken from values.
func newProfile(stacks [][]string, values []int64) *profile.Profile {
	reg := profile.NewRegistry()
	ids := make(map[string]uint64)
	p := &profile.Profile{Registry: reg}
	for i, s := range stacks {
		locs := make([]uint64, 0, len(s))
		for _, name := range s {
			id, ok := ids[name]
			if !ok {
				id = uint64(len(ids) + 1)
				ids[name] = id
				reg.AddFunction(id, profile.Frame{Name: name})
				reg.AddLocation(id, id)
			}
			locs = append(locs, id)
		}
		p.Samples = append(p.Samples, profile.Sample{Locations: locs, Values: []int64{values[i]}})
	}
	return p
}

func analyze(t *testing.T, p *profile.Profile, mode blame.Mode, b, parent, exclude string, workers int) *blame.Result {
	t.Helper()
	return blame.Analyze(p, blame.Options{
		Classifier: classifier(t, mode, b, parent, exclude),
		Workers:    workers,
	})
}

func assertPartition(t *testing.T, r *blame.Result) {
	t.Helper()
	sum := r.Blamed.Samples + r.Excluded.Samples + r.Unmatched.Samples + r.ParentNotFound.Samples
	assert.Equal(t, r.Total.Samples, sum)
	value := r.Blamed.Value + r.Excluded.Value + r.Unmatched.Value + r.ParentNotFound.Value
	assert.Equal(t, r.Total.Value, value)
}

var fixture = newProfile([][]string{
	{"memcpy", "write", "flush", "handler", "main"},
	{"lock", "write", "handler", "main"},
	{"read", "handler", "main"},
	{"write", "main"},
	{"gc", "main"},
	{},
	{"write", "bg"},
}, []int64{10, 20, 30, 40, 50, 60, 70})

func TestAnalyzeWithParent(t *testing.T) {
	r := analyze(t, fixture, blame.Windowed, "^write$", "^handler$", "^lock$", 1)

	assert.True(t, r.HasParent)
	assert.Equal(t, blame.Counter{Samples: 6, Value: 220}, r.Total)
	assert.Equal(t, blame.Counter{Samples: 1, Value: 10}, r.Blamed)
	assert.Equal(t, blame.Counter{Samples: 1, Value: 20}, r.Excluded)
	assert.Equal(t, blame.Counter{Samples: 1, Value: 30}, r.Unmatched)
	assert.Equal(t, blame.Counter{Samples: 3, Value: 160}, r.ParentNotFound)
	assert.Equal(t, blame.Counter{Samples: 3, Value: 60}, r.Parent)

	assert.Equal(t, blame.FrameTally{"write": {Samples: 1, Value: 10}}, r.BlamedFrames)
	assert.Equal(t, blame.FrameTally{"write": {Samples: 1, Value: 20}}, r.ExcludedFrames)
	assert.Equal(t, blame.FrameTally{"handler": {Samples: 3, Value: 60}}, r.ParentFrames)

	assert.True(t, r.UsesParent())
	assert.InDelta(t, 10.0/60.0*100, r.Percentage(), 1e-9)
	assertPartition(t, r)
}

func TestAnalyzeWithoutParent(t *testing.T) {
	r := analyze(t, fixture, blame.Windowed, "^write$", "", "", 1)

	assert.False(t, r.HasParent)
	assert.Equal(t, blame.Counter{Samples: 4, Value: 140}, r.Blamed)
	assert.Equal(t, blame.Counter{}, r.Parent)
	assert.Empty(t, r.ParentFrames)
	assert.InDelta(t, 140.0/220.0*100, r.Percentage(), 1e-9)
	assertPartition(t, r)
}

func TestAnalyzeSkipsEmptyStacks(t *testing.T) {
	p := newProfile([][]string{{}, {}}, []int64{5, 7})
	r := analyze(t, p, blame.Windowed, ".", "", "", 1)

	assert.Equal(t, blame.Counter{}, r.Total)
	assert.Zero(t, r.Percentage())
}

func TestPercentageFallsBackToTotal(t *testing.T) {
	r := analyze(t, fixture, blame.Windowed, "^write$", "^nothing$", "", 1)

	assert.False(t, r.UsesParent())
	assert.Equal(t, r.Total, r.Denominator())
	assert.Zero(t, r.Blamed.Samples)
	assert.Zero(t, r.Percentage())
	assertPartition(t, r)
}

func TestPercentageZeroDenominator(t *testing.T) {
	r := blame.NewResult(true)
	r.Record(blame.Outcome{Kind: blame.Blamed, ParentMatched: true}, 0)

	assert.True(t, r.UsesParent())
	assert.Zero(t, r.Percentage())
}

func TestAnalyzeToggle(t *testing.T) {
	r := analyze(t, fixture, blame.ToggleStrict, "^write$", "", "^lock$", 1)

	assert.Equal(t, blame.Counter{Samples: 3, Value: 120}, r.Blamed)
	assert.Equal(t, blame.Counter{}, r.Excluded)
	assert.Equal(t, blame.Counter{Samples: 3, Value: 100}, r.Unmatched)
	assertPartition(t, r)
}

func TestAnalyzeIdempotent(t *testing.T) {
	for _, mode := range []blame.Mode{blame.Windowed, blame.ToggleStrict, blame.TogglePermissive} {
		t.Run(mode.String(), func(t *testing.T) {
			a := analyze(t, fixture, mode, "write|read", "", "lock", 1)
			b := analyze(t, fixture, mode, "write|read", "", "lock", 1)
			assert.Equal(t, a, b)
		})
	}
}

func TestAnalyzeParallelMatchesSequential(t *testing.T) {
	seq := analyze(t, fixture, blame.Windowed, "^write$", "^handler$", "^lock$", 1)
	for _, workers := range []int{2, 3, 7, 64} {
		par := analyze(t, fixture, blame.Windowed, "^write$", "^handler$", "^lock$", workers)
		assert.Equal(t, seq, par, "workers=%d", workers)
	}
}

func TestAnalyzeValueIndex(t *testing.T) {
	p := newProfile([][]string{{"a"}}, []int64{3})
	p.Samples[0].Values = []int64{3, 300}

	r := blame.Analyze(p, blame.Options{
		Classifier: classifier(t, blame.Windowed, "a", "", ""),
		ValueIndex: 1,
	})
	assert.EqualValues(t, 300, r.Blamed.Value)

	r = blame.Analyze(p, blame.Options{
		Classifier: classifier(t, blame.Windowed, "a", "", ""),
		ValueIndex: 9,
	})
	assert.Equal(t, blame.Counter{Samples: 1}, r.Blamed)
}

func TestAnalyzeTracerSeesSampleIndex(t *testing.T) {
	var (
		mu       sync.Mutex
		verdicts = make(map[int]blame.Kind)
	)
	tracer := blame.TracerFunc(func(ev blame.Event) {
		if ev.Kind != blame.Verdict {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		verdicts[ev.Sample] = ev.Outcome.Kind
	})

	blame.Analyze(fixture, blame.Options{
		Classifier: classifier(t, blame.Windowed, "^write$", "", ""),
		Tracer:     tracer,
		Workers:    3,
	})

	require.Len(t, verdicts, 6)
	assert.Equal(t, blame.Blamed, verdicts[0])
	assert.Equal(t, blame.Unmatched, verdicts[2])
	assert.NotContains(t, verdicts, 5)
	assert.Equal(t, blame.Blamed, verdicts[6])
}

func TestMergeIsCommutative(t *testing.T) {
	a := blame.NewResult(false)
	a.Record(blame.Outcome{Kind: blame.Blamed, Frame: profile.Frame{Name: "x"}}, 4)
	b := blame.NewResult(false)
	b.Record(blame.Outcome{Kind: blame.Excluded, Frame: profile.Frame{Name: "y"}}, 6)
	b.Record(blame.Outcome{Kind: blame.Blamed, Frame: profile.Frame{Name: "x"}}, 1)

	ab := blame.NewResult(false)
	ab.Merge(a)
	ab.Merge(b)
	ba := blame.NewResult(false)
	ba.Merge(b)
	ba.Merge(a)

	assert.Equal(t, ab, ba)
	assert.Equal(t, blame.Counter{Samples: 2, Value: 5}, ab.BlamedFrames["x"])
	assertPartition(t, ab)
}
