// Package progress defines the event shape emitted by long-running
// knowledge-base operations (currently just ingest) so a caller-supplied
// callback can drive a progress bar or log line without coupling the
// core to any particular UI.
package progress

import "time"

// Phase names a stage of an ingest run. Callers must see at least one
// event per phase transition.
type Phase string

const (
	PhaseDiscover Phase = "discover"
	PhaseParse    Phase = "parse"
	PhaseChunk    Phase = "chunk"
	PhaseEmbed    Phase = "embed"
	PhaseIndex    Phase = "index"
)

// Event is one point-in-time report of progress within a phase.
type Event struct {
	Phase      Phase
	Current    int
	Total      int // 0 means unknown
	Percentage float64
	Message    string
	Elapsed    time.Duration
}

// Func is the callback signature accepted by orchestrators. Emission is
// best-effort: a slow or blocking Func must not stall the ingest, so
// implementations should do the real work (rendering, logging) on
// another goroutine if it's not cheap.
type Func func(Event)

// Reporter tracks the start time and derives elapsed time and
// percentage for each event, so callers don't have to compute them at
// every call site. Phase and totals are passed in on each Emit.
type Reporter struct {
	fn    Func
	start time.Time
}

// NewReporter wraps fn, or returns a no-op Reporter if fn is nil.
func NewReporter(fn Func) *Reporter {
	return &Reporter{fn: fn, start: time.Now()}
}

func (r *Reporter) Emit(phase Phase, current, total int, message string) {
	if r == nil || r.fn == nil {
		return
	}
	pct := 0.0
	if total > 0 {
		pct = 100.0 * float64(current) / float64(total)
	}
	r.fn(Event{
		Phase:      phase,
		Current:    current,
		Total:      total,
		Percentage: pct,
		Message:    message,
		Elapsed:    time.Since(r.start),
	})
}
