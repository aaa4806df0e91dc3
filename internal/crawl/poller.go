package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/metrics"
	"github.com/autorag/harvester/internal/progress"
)

// Terminal poll-driver errors.
var (
	// ErrJobFailed reports that the remote service marked the job failed.
	// It is distinct from a status-fetch error, which wraps the client's
	// own error instead.
	ErrJobFailed = errors.New("remote crawl job failed")

	// ErrPollBudgetExceeded reports that MaxPolls status fetches happened
	// without the job reaching a terminal state.
	ErrPollBudgetExceeded = errors.New("poll budget exceeded")
)

// PollerConfig controls the poll loop.
type PollerConfig struct {
	// Interval is the fixed wait between status fetches; the loop never
	// backs off. Defaults to 10s.
	Interval time.Duration
	// MaxPolls bounds the number of status fetches; zero means unbounded.
	MaxPolls int
	// RunID tags progress events with the local run identifier.
	RunID string
}

// Poller drives a remote crawl job to a terminal state by fetching status
// snapshots at a fixed interval. It never imposes a deadline of its own;
// bound a run with MaxPolls or a context deadline.
type Poller struct {
	client  JobClient
	clock   Clock
	emitter progress.Emitter
	cfg     PollerConfig
	logger  *zap.Logger
}

// NewPoller constructs a Poller. The emitter may be nil when progress
// reporting is disabled.
func NewPoller(client JobClient, clock Clock, emitter progress.Emitter, cfg PollerConfig, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{client: client, clock: clock, emitter: emitter, cfg: cfg, logger: logger}
}

// PollOutcome reports the final observation of a poll loop.
type PollOutcome struct {
	// Snapshot is the last snapshot fetched. On a nil error it is the
	// completed job including its page records; on ErrJobFailed it carries
	// the failure diagnostics.
	Snapshot Snapshot
	// Iterations counts status fetches performed.
	Iterations int
}

// Await polls jobID until it reaches a terminal state.
//
// It returns nil when the job completes, an error wrapping ErrJobFailed when
// the remote service reports failure, and the wrapped client error when a
// status fetch itself fails. A fetch failure halts the loop immediately:
// once the job's state cannot be observed there is nothing sane to wait for.
// Unrecognized status values are logged and polling continues.
func (p *Poller) Await(ctx context.Context, jobID string) (PollOutcome, error) {
	var out PollOutcome
	for {
		if p.cfg.MaxPolls > 0 && out.Iterations >= p.cfg.MaxPolls {
			return out, fmt.Errorf("job %s: %w after %d status fetches", jobID, ErrPollBudgetExceeded, out.Iterations)
		}

		snap, err := p.client.FetchStatus(ctx, jobID)
		out.Iterations++
		if err != nil {
			metrics.ObservePoll("fetch_error")
			p.logger.Error("status fetch failed, leaving poll loop",
				zap.String("job_id", jobID),
				zap.Int("iteration", out.Iterations),
				zap.Error(err),
			)
			return out, fmt.Errorf("fetch status for job %s: %w", jobID, err)
		}
		out.Snapshot = snap
		metrics.ObservePoll(string(snap.Status))
		p.emit(jobID, snap)

		switch snap.Status {
		case StatusCompleted:
			p.logger.Info("crawl job completed",
				zap.String("job_id", jobID),
				zap.Int("pages", len(snap.Pages)),
				zap.Int("iterations", out.Iterations),
			)
			return out, nil
		case StatusFailed:
			p.logger.Error("crawl job failed",
				zap.String("job_id", jobID),
				zap.Int("completed", snap.Completed),
				zap.Int("total", snap.Total),
			)
			return out, fmt.Errorf("job %s: %w", jobID, ErrJobFailed)
		case StatusPending, StatusScraping:
			p.logger.Info("crawl job in progress",
				zap.String("job_id", jobID),
				zap.String("status", string(snap.Status)),
				zap.Int("completed", snap.Completed),
				zap.Int("total", snap.Total),
			)
		default:
			p.logger.Warn("unrecognized job status, continuing to poll",
				zap.String("job_id", jobID),
				zap.String("status", string(snap.Status)),
			)
		}

		if err := p.clock.Sleep(ctx, p.cfg.Interval); err != nil {
			return out, fmt.Errorf("poll loop interrupted: %w", err)
		}
	}
}

func (p *Poller) emit(jobID string, snap Snapshot) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(progress.Event{
		RunID:     p.cfg.RunID,
		JobID:     jobID,
		TS:        p.clock.Now(),
		Stage:     progress.StagePoll,
		Status:    string(snap.Status),
		Completed: snap.Completed,
		Total:     snap.Total,
	})
}
