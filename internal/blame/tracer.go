package blame

import (
	log "github.com/sirupsen/logrus"

	"pprof-blame/internal/profile"
)

// EventKind identifies a point in the classification of a sample.
type EventKind int

const (
	// FrameVisited fires for every frame a toggle classifier looks at.
	FrameVisited EventKind = iota
	ParentMatched
	BlameMatched
	BlameCancelled
	ExcludeMatched
	// Verdict fires once per sample with the final outcome.
	Verdict
)

func (k EventKind) String() string {
	switch k {
	case FrameVisited:
		return "frame"
	case ParentMatched:
		return "parent-matched"
	case BlameMatched:
		return "blame-matched"
	case BlameCancelled:
		return "blame-cancelled"
	case ExcludeMatched:
		return "exclude-matched"
	case Verdict:
		return "verdict"
	}
	return "unknown"
}

// Event is passed to a Tracer. Depth is the stack index of Frame, leaf = 0.
type Event struct {
	Kind    EventKind
	Sample  int
	Depth   int
	Frame   profile.Frame
	Outcome Outcome
}

// Tracer receives classification diagnostics synchronously.
type Tracer interface {
	Trace(Event)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(Event)

func (f TracerFunc) Trace(ev Event) { f(ev) }

type nopTracer struct{}

func (nopTracer) Trace(Event) {}

// NopTracer discards every event.
var NopTracer Tracer = nopTracer{}

// LogTracer writes every event to logger at debug level.
func LogTracer(logger log.FieldLogger) Tracer {
	return TracerFunc(func(ev Event) {
		entry := logger.WithFields(log.Fields{
			"sample": ev.Sample,
			"event":  ev.Kind.String(),
		})
		if ev.Kind == Verdict {
			entry = entry.WithField("outcome", ev.Outcome.Kind.String())
			if ev.Outcome.Kind == Blamed || ev.Outcome.Kind == Excluded {
				entry = entry.WithField("frame", ev.Outcome.Frame.Name)
			}
			entry.Debug("Classified sample")
			return
		}
		entry.WithFields(log.Fields{
			"depth": ev.Depth,
			"frame": ev.Frame.Name,
		}).Debug("Visited frame")
	})
}

// sampleTracer stamps events with the index of the sample being classified.
type sampleTracer struct {
	next   Tracer
	sample int
}

func (t *sampleTracer) Trace(ev Event) {
	ev.Sample = t.sample
	t.next.Trace(ev)
}
