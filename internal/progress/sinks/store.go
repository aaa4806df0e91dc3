package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/progress"
)

// ProgressRecorder persists live poll progress for a run. *ledger.Store
// satisfies it.
type ProgressRecorder interface {
	UpdateRunProgress(ctx context.Context, runID string, status string, completed, total int, at time.Time) error
}

// StoreSink streams poll progress into the run ledger so an in-flight run
// can be watched from SQL. Run lifecycle rows are written synchronously by
// the command itself; this sink only refreshes the live counters.
type StoreSink struct {
	rec    ProgressRecorder
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided recorder.
func NewStoreSink(rec ProgressRecorder, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{rec: rec, logger: logger}
}

// Consume forwards poll events to the recorder and ignores other stages. It
// respects ctx deadlines and returns recorder errors verbatim.
func (s *StoreSink) Consume(ctx context.Context, evt progress.Event) error {
	if s == nil || s.rec == nil {
		return nil
	}
	if evt.Stage != progress.StagePoll {
		return nil
	}
	if err := s.rec.UpdateRunProgress(ctx, evt.RunID, evt.Status, evt.Completed, evt.Total, evt.TS); err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
