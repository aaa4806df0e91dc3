package crawl

import (
	"context"
	"time"
)

// JobClient wraps the remote crawl service. Implementations do not retry;
// callers own failure policy.
type JobClient interface {
	// Submit starts an asynchronous crawl of targetURL and returns the
	// remote job id.
	Submit(ctx context.Context, targetURL string, params Params) (string, error)
	// FetchStatus returns a fresh snapshot of the job's remote state.
	FetchStatus(ctx context.Context, jobID string) (Snapshot, error)
}

// Clock abstracts time so the poll loop is testable without real waits.
type Clock interface {
	Now() time.Time
	// Sleep suspends until d elapses or ctx finishes, returning the context
	// error in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces unique tokens for run identifiers and artifact names.
type IDGenerator interface {
	// NewID returns a time-ordered unique id, used for run identifiers.
	NewID() (string, error)
	// NewV4ID returns a fully random unique id, used for page filenames so
	// names never derive from page URLs.
	NewV4ID() (string, error)
}

// Hasher computes the content digest recorded alongside each saved page.
type Hasher interface {
	Hash(data []byte) (string, error)
}
