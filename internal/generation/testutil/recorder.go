package testutil

import (
	"sync"
	"testing"
	"time"

	"promogen/internal/generation"
)

// EventRecorder captures progress events for assertions. Its callback is
// safe to register on multiple subscriptions of the same job.
type EventRecorder struct {
	mu       sync.Mutex
	events   []generation.ProgressEvent
	terminal chan struct{}
	once     sync.Once
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{
		terminal: make(chan struct{}),
	}
}

// Callback returns the ProgressCallback that feeds this recorder.
func (r *EventRecorder) Callback() generation.ProgressCallback {
	return func(ev generation.ProgressEvent) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
		if ev.Status.IsTerminal() {
			r.once.Do(func() { close(r.terminal) })
		}
	}
}

// Events returns a copy of everything captured so far.
func (r *EventRecorder) Events() []generation.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]generation.ProgressEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recent event.
func (r *EventRecorder) Last() (generation.ProgressEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return generation.ProgressEvent{}, false
	}
	return r.events[len(r.events)-1], true
}

// Count returns how many events were captured.
func (r *EventRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// WaitTerminal blocks until a terminal event arrives or the timeout passes.
func (r *EventRecorder) WaitTerminal(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.terminal:
	case <-time.After(timeout):
		t.Fatalf("no terminal event within %s (captured %d events)", timeout, r.Count())
	}
}
