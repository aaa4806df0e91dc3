package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/progress"
)

// LogSink mirrors progress events into the structured log. It is useful
// during development or audits where no ledger is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	s.logger.Info("progress event",
		zap.String("run_id", evt.RunID),
		zap.String("job_id", evt.JobID),
		zap.String("stage", string(evt.Stage)),
		zap.String("status", evt.Status),
		zap.Int("completed", evt.Completed),
		zap.Int("total", evt.Total),
		zap.String("note", evt.Note),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
