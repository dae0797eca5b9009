package blame

import (
	"golang.org/x/sync/errgroup"

	"pprof-blame/internal/profile"
)

// Options configures Analyze.
type Options struct {
	Classifier Classifier
	// ValueIndex selects the sample value column that is aggregated.
	ValueIndex int
	// Tracer receives per-sample diagnostics. nil disables tracing.
	Tracer Tracer
	// Workers shards the samples across goroutines when greater than 1.
	// A Tracer must be safe for concurrent use in that case.
	Workers int
}

// Analyze classifies every sample of p and returns the aggregate. Samples
// whose stack resolves to no frames are skipped entirely.
func Analyze(p *profile.Profile, opts Options) *Result {
	if opts.Tracer == nil {
		opts.Tracer = NopTracer
	}
	hasParent := opts.Classifier.Patterns().Parent != nil

	workers := opts.Workers
	if workers > len(p.Samples) {
		workers = len(p.Samples)
	}
	if workers <= 1 {
		r := NewResult(hasParent)
		analyzeRange(p, opts, 0, len(p.Samples), r)
		return r
	}

	shards := make([]*Result, workers)
	chunk := (len(p.Samples) + workers - 1) / workers
	g := errgroup.Group{}
	for w := range shards {
		lo := w * chunk
		hi := min(lo+chunk, len(p.Samples))
		shard := NewResult(hasParent)
		shards[w] = shard
		g.Go(func() error {
			analyzeRange(p, opts, lo, hi, shard)
			return nil
		})
	}
	_ = g.Wait()

	r := NewResult(hasParent)
	for _, shard := range shards {
		r.Merge(shard)
	}
	return r
}

func analyzeRange(p *profile.Profile, opts Options, lo, hi int, r *Result) {
	tracer := opts.Tracer
	st := &sampleTracer{next: opts.Tracer}
	if opts.Tracer != NopTracer {
		tracer = st
	}

	for i := lo; i < hi; i++ {
		s := &p.Samples[i]
		stack := p.Stack(s)
		if stack.Len() == 0 {
			continue
		}
		st.sample = i
		r.Record(opts.Classifier.Classify(stack, tracer), s.Value(opts.ValueIndex))
	}
}
