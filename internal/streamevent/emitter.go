package streamevent

import "sync"

// Emitter fans a run's events out to at most one live subscriber per
// run_id. A subscriber that stops draining its channel (consumer
// cancellation) causes events to be dropped, not blocked — the run
// continues on its own resources regardless of whether anyone is listening
// (§7: "external cancellation ... is a signal but not a hard kill").
type Emitter struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: map[string]chan Event{}}
}

// Subscribe opens a forward-only event channel for runID. Only one
// subscriber is supported per run_id; a second call replaces the first.
func (e *Emitter) Subscribe(runID string) <-chan Event {
	ch := make(chan Event, 64)
	e.mu.Lock()
	e.subs[runID] = ch
	e.mu.Unlock()
	return ch
}

// Publish sends evt to runID's subscriber, if any. A full channel (a
// consumer that has stopped draining) drops the event rather than
// blocking the run.
func (e *Emitter) Publish(evt Event) {
	e.mu.Lock()
	ch, ok := e.subs[evt.RunID]
	e.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- evt:
	default:
	}
}

// Close ends runID's event stream, closing its subscriber channel if one
// exists. Callers invoke this once the run reaches a terminal status.
func (e *Emitter) Close(runID string) {
	e.mu.Lock()
	ch, ok := e.subs[runID]
	if ok {
		delete(e.subs, runID)
	}
	e.mu.Unlock()
	if ok {
		close(ch)
	}
}
