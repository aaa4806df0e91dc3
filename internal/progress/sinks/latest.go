package sinks

import (
	"context"
	"sync"

	"github.com/autorag/harvester/internal/progress"
)

// Latest retains the most recent event so the status API can answer
// "where is the current run" without touching the ledger.
type Latest struct {
	mu   sync.RWMutex
	evt  progress.Event
	seen bool
}

// NewLatest constructs an empty Latest sink.
func NewLatest() *Latest {
	return &Latest{}
}

// Consume replaces the retained event.
func (l *Latest) Consume(_ context.Context, evt progress.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evt = evt
	l.seen = true
	return nil
}

// Close implements the Sink interface; it performs no action.
func (l *Latest) Close(context.Context) error {
	return nil
}

// Snapshot returns the retained event and whether one has been seen.
func (l *Latest) Snapshot() (progress.Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.evt, l.seen
}
