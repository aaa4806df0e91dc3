package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

// TestHubDeliversInOrder verifies sinks see events in emit order.
func TestHubDeliversInOrder(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 8}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageRunStart))
	hub.Emit(sampleEvent(StagePoll))
	hub.Emit(sampleEvent(StageRunDone))

	require.Eventually(t, func() bool {
		return len(sink.Events()) == 3
	}, time.Second, 10*time.Millisecond)

	got := sink.Events()
	require.Equal(t, StageRunStart, got[0].Stage)
	require.Equal(t, StagePoll, got[1].Stage)
	require.Equal(t, StageRunDone, got[2].Stage)
}

// TestHubEmitNonBlockingWithoutConsumers asserts Emit never blocks callers,
// even with an unbuffered channel and no running goroutine.
func TestHubEmitNonBlockingWithoutConsumers(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:    Config{},
		events: make(chan Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent(StagePoll))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestHubFlushOnClose ensures Close drains buffered events before returning.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4}, sink)

	hub.Emit(sampleEvent(StagePoll))

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Events(), 1)
	require.True(t, sink.Closed())
}

// TestHubDiscardsInvalidEvents confirms events failing validation never reach
// sinks.
func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4}, sink)

	hub.Emit(Event{Stage: StagePoll}) // no run id, no timestamp

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Events())
}

// TestHubEmitAfterClose verifies a closed hub silently ignores events.
func TestHubEmitAfterClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(sampleEvent(StagePoll))
	require.Empty(t, sink.Events())
}

// TestHubNilReceiver ensures nil hubs are safe no-ops so callers can skip
// wiring progress entirely.
func TestHubNilReceiver(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(sampleEvent(StagePoll))
	require.NoError(t, hub.Close(context.Background()))
}

// TestEventValidate covers the coarse event validation rules.
func TestEventValidate(t *testing.T) {
	t.Parallel()

	valid := sampleEvent(StagePoll)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(Event) Event
	}{
		{"missing run id", func(e Event) Event { e.RunID = ""; return e }},
		{"missing timestamp", func(e Event) Event { e.TS = time.Time{}; return e }},
		{"unknown stage", func(e Event) Event { e.Stage = "REWIND"; return e }},
		{"poll without status", func(e Event) Event { e.Status = ""; return e }},
		{"negative counters", func(e Event) Event { e.Completed = -1; return e }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Error(t, tt.mutate(valid).Validate())
		})
	}
}

type stubSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func newStubSink() *stubSink {
	return &stubSink{}
}

func (s *stubSink) Consume(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func sampleEvent(stage Stage) Event {
	evt := Event{
		RunID: "0191e2f3-0000-7000-8000-000000000001",
		JobID: "abc123",
		TS:    time.Now().UTC(),
		Stage: stage,
	}
	if stage == StagePoll {
		evt.Status = "scraping"
		evt.Total = 10
	}
	return evt
}
