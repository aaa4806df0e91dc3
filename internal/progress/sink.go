package progress

import "context"

// Sink consumes delivered progress events. The hub invokes a sink from a
// single goroutine; implementations must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// poll driver stays agnostic about how events are buffered or persisted.
type Emitter interface {
	Emit(evt Event)
}
