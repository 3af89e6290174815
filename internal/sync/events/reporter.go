package events

import "sync"

// Sink receives events in emission order. Implementations are expected to
// be cheap (e.g. JSON-encode and write to a channel or stdout); Reporter
// does not run the sink concurrently with itself.
type Sink func(Event)

// Reporter wraps a Sink with an ordering guarantee: branch-specific
// events (BranchStatusUpdate, CommitSynced, CommitError, CommitsBlocked,
// RemoteStatusUpdate) are buffered until the first BranchesGrouped event
// has been forwarded, so the UI never observes a branch update before it
// has seen the branch list. All other event types pass through
// immediately. Uses a mutex-guarded slice rather than a lock-free queue.
type Reporter struct {
	sink Sink

	mu      sync.Mutex
	drained bool
	queue   []Event
}

// NewReporter wraps sink.
func NewReporter(sink Sink) *Reporter {
	return &Reporter{sink: sink}
}

// Report emits ev, queuing it if it is branch-specific and BranchesGrouped
// hasn't been forwarded yet.
func (r *Reporter) Report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.drained && branchSpecific(ev.Type) {
		r.queue = append(r.queue, ev)
		return
	}

	r.sink(ev)

	if ev.Type == TypeBranchesGrouped {
		r.drained = true
		for _, queued := range r.queue {
			r.sink(queued)
		}
		r.queue = nil
	}
}
