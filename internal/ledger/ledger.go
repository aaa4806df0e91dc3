// Package ledger records harvest runs, their saved files, and upload batches
// in Postgres. It is optional: without a configured database the application
// simply skips the bookkeeping.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/crawl"
)

// Run statuses stored in harvest_runs.status. While a run is in flight the
// column carries the remote service's own status strings; these mark the
// local lifecycle.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes harvest bookkeeping rows into Postgres.
type Store struct {
	pool   execCloser
	logger *zap.Logger
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS harvest_runs (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	target_url TEXT NOT NULL,
	status TEXT NOT NULL,
	pages_completed INTEGER NOT NULL DEFAULT 0,
	pages_total INTEGER NOT NULL DEFAULT 0,
	pages_saved INTEGER NOT NULL DEFAULT 0,
	error_text TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS harvest_run_files (
	run_id TEXT NOT NULL REFERENCES harvest_runs(id),
	filename TEXT NOT NULL,
	source_url TEXT NOT NULL,
	content_hash TEXT,
	bytes INTEGER NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, filename)
)`,
	`CREATE TABLE IF NOT EXISTS harvest_uploads (
	id TEXT PRIMARY KEY,
	bucket TEXT NOT NULL,
	source_dir TEXT NOT NULL,
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`,
}

// EnsureSchema creates the bookkeeping tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger is not configured")
	}
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

// StartRun records a new run in the running state.
func (s *Store) StartRun(ctx context.Context, runID, jobID, targetURL string, at time.Time) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	query := `
INSERT INTO harvest_runs (id, job_id, target_url, status, started_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`
	if _, err := s.pool.Exec(ctx, query, runID, jobID, targetURL, RunStatusRunning, at); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRunProgress stores the latest observed poll counters for a run.
func (s *Store) UpdateRunProgress(ctx context.Context, runID string, status string, completed, total int, at time.Time) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger is not configured")
	}
	query := `
UPDATE harvest_runs
SET status = $2, pages_completed = $3, pages_total = $4, updated_at = $5
WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, runID, status, completed, total, at); err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// FinishRun marks a run terminal with its final status and saved-page count.
// An empty errText is stored as NULL.
func (s *Store) FinishRun(ctx context.Context, runID, status, errText string, pagesSaved int, at time.Time) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger is not configured")
	}
	query := `
UPDATE harvest_runs
SET status = $2, error_text = NULLIF($3, ''), pages_saved = $4, updated_at = $5, finished_at = $5
WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, runID, status, errText, pagesSaved, at); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordFile records one saved page file for a run.
func (s *Store) RecordFile(ctx context.Context, runID string, file crawl.SavedFile, at time.Time) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger is not configured")
	}
	if file.Name == "" {
		return fmt.Errorf("filename is required")
	}
	query := `
INSERT INTO harvest_run_files (run_id, filename, source_url, content_hash, bytes, saved_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`
	if _, err := s.pool.Exec(ctx, query, runID, file.Name, file.SourceURL, file.ContentHash, file.Bytes, at); err != nil {
		return fmt.Errorf("insert run file: %w", err)
	}
	return nil
}

// UploadRecord is one finished upload batch.
type UploadRecord struct {
	ID         string
	Bucket     string
	SourceDir  string
	Succeeded  int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// RecordUpload records a finished upload batch.
func (s *Store) RecordUpload(ctx context.Context, rec UploadRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger is not configured")
	}
	if rec.ID == "" {
		return fmt.Errorf("upload id is required")
	}
	query := `
INSERT INTO harvest_uploads (id, bucket, source_dir, succeeded, failed, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.pool.Exec(ctx, query, rec.ID, rec.Bucket, rec.SourceDir, rec.Succeeded, rec.Failed, rec.StartedAt, rec.FinishedAt); err != nil {
		return fmt.Errorf("insert upload record: %w", err)
	}
	return nil
}
