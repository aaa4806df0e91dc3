package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/api"
	"github.com/autorag/harvester/internal/app"
	"github.com/autorag/harvester/internal/clock/system"
	"github.com/autorag/harvester/internal/crawl"
	"github.com/autorag/harvester/internal/firecrawl"
	"github.com/autorag/harvester/internal/hash/sha256"
	"github.com/autorag/harvester/internal/id/uuid"
	"github.com/autorag/harvester/internal/ledger"
	"github.com/autorag/harvester/internal/metrics"
	"github.com/autorag/harvester/internal/progress"
	"github.com/autorag/harvester/internal/progress/sinks"
	"github.com/autorag/harvester/internal/publisher"
)

// crawlOptions holds the flag overrides for one crawl invocation. Zero
// values defer to the configuration.
type crawlOptions struct {
	limit     int
	maxDepth  int
	outputDir string
}

// newCrawlCmd creates the 'crawl' subcommand: submit a job for the target
// URL, poll until it reaches a terminal state, and write every returned page
// to the output directory.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Submit a crawl job and save the returned pages to disk",
		Long: `Submits an asynchronous crawl job for the target URL, polls the remote
service at a fixed interval until the job completes or fails, and writes
each returned page to its own uniquely named HTML file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum pages to crawl (overrides config)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "maximum crawl depth (overrides config)")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "directory for harvested pages (overrides config)")

	return cmd
}

func runCrawl(cmd *cobra.Command, targetURL string, opts *crawlOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := a.Cfg
	logger := a.Logger

	params := cfg.CrawlParams()
	if opts.limit > 0 {
		params.Limit = opts.limit
	}
	if opts.maxDepth > 0 {
		params.MaxDepth = opts.maxDepth
	}
	outputDir := cfg.Crawl.OutputDir
	if opts.outputDir != "" {
		outputDir = opts.outputDir
	}

	ctx := cmd.Context()
	if timeout := cfg.Crawl.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client, err := firecrawl.New(firecrawl.Config{
		APIKey:  cfg.Crawl.APIKey,
		BaseURL: cfg.Crawl.BaseURL,
		Timeout: cfg.Crawl.RequestTimeout(),
	}, logger.Named("firecrawl"))
	if err != nil {
		return err
	}

	ids := uuid.New()
	runID, err := ids.NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	clk := system.New()

	logger.Info("starting crawl run",
		zap.String("run_id", runID),
		zap.String("target_url", targetURL),
		zap.Int("limit", params.Limit),
		zap.Int("max_depth", params.MaxDepth),
	)

	jobID, err := client.Submit(ctx, targetURL, params)
	if err != nil {
		metrics.ObserveRun("error")
		return fmt.Errorf("submit crawl job: %w", err)
	}

	if a.Ledger != nil {
		if err := a.Ledger.StartRun(ctx, runID, jobID, targetURL, clk.Now()); err != nil {
			logger.Warn("recording run start failed", zap.Error(err))
		}
	}

	hub, latest := buildProgressHub(a)
	stopServer := startStatusServer(a, latest)

	hub.Emit(progress.Event{
		RunID: runID,
		JobID: jobID,
		TS:    clk.Now(),
		Stage: progress.StageRunStart,
		Note:  targetURL,
	})

	poller := crawl.NewPoller(client, clk, hub, crawl.PollerConfig{
		Interval: cfg.Crawl.PollInterval(),
		MaxPolls: cfg.Crawl.MaxPolls,
		RunID:    runID,
	}, logger.Named("poller"))

	outcome, runErr := poller.Await(ctx, jobID)

	var saved crawl.SaveOutcome
	if runErr == nil {
		saved, runErr = persistResults(ctx, outputDir, outcome.Snapshot, ids, logger)
	}
	finishedAt := clk.Now()

	emitRunEnd(hub, runID, jobID, outcome.Snapshot, saved, runErr, finishedAt)

	// Cleanup runs on a fresh context: ctx may already be canceled and the
	// ledger row and completion event should still land.
	bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.Close(bg); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	stopServer(bg)
	recordRunFinish(bg, a, runID, saved, runErr, finishedAt)
	publishCrawlFinished(bg, a, publisher.CrawlFinished{
		Event:        publisher.TopicCrawlFinished,
		RunID:        runID,
		JobID:        jobID,
		TargetURL:    targetURL,
		Status:       string(outcome.Snapshot.Status),
		PagesSaved:   saved.Saved,
		PagesSkipped: saved.Skipped,
		PagesFailed:  saved.Failed,
		OutputDir:    outputDir,
		FinishedAt:   finishedAt,
	})

	if runErr != nil {
		metrics.ObserveRun("error")
		return runErr
	}
	metrics.ObserveRun("ok")
	logger.Info("crawl run finished",
		zap.String("run_id", runID),
		zap.Int("saved", saved.Saved),
		zap.Int("skipped", saved.Skipped),
		zap.Int("failed", saved.Failed),
		zap.String("output_dir", outputDir),
	)
	return nil
}

// persistResults writes the completed job's pages to dir. A completed job
// with no data is not an error; the remote service sometimes returns none.
func persistResults(ctx context.Context, dir string, snap crawl.Snapshot, ids crawl.IDGenerator, logger *zap.Logger) (crawl.SaveOutcome, error) {
	if len(snap.Pages) == 0 {
		logger.Warn("crawl completed but returned no data")
		return crawl.SaveOutcome{}, nil
	}
	persister, err := crawl.NewPersister(dir, ids, sha256.New(), logger.Named("persister"))
	if err != nil {
		return crawl.SaveOutcome{}, err
	}
	return persister.SaveAll(ctx, snap.Pages)
}

// buildProgressHub assembles the progress pipeline: the Latest sink feeding
// the status API, optionally the log mirror and the ledger sink. Returns nil
// when progress reporting is disabled; Hub methods are nil-safe.
func buildProgressHub(a *app.App) (*progress.Hub, *sinks.Latest) {
	if !a.Cfg.Progress.Enabled {
		return nil, nil
	}
	latest := sinks.NewLatest()
	sinkList := []progress.Sink{latest}
	if a.Cfg.Progress.LogEnabled {
		sinkList = append(sinkList, sinks.NewLogSink(a.Logger.Named("progress")))
	}
	if a.Ledger != nil {
		sinkList = append(sinkList, sinks.NewStoreSink(a.Ledger, a.Logger.Named("progress")))
	}
	hub := progress.NewHub(progress.Config{
		BufferSize: a.Cfg.Progress.BufferSize,
		Logger:     a.Logger.Named("progress"),
	}, sinkList...)
	return hub, latest
}

// startStatusServer exposes health, metrics, and the live run observation
// while the crawl is in flight. The returned stop function shuts it down.
func startStatusServer(a *app.App, latest *sinks.Latest) func(context.Context) {
	if !a.Cfg.Server.Enabled {
		return func(context.Context) {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Cfg.Server.Port),
		Handler:           api.NewServer(latest, a.Logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.Logger.Info("status server started", zap.Int("port", a.Cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("status server error", zap.Error(err))
		}
	}()
	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			a.Logger.Warn("status server shutdown error", zap.Error(err))
		}
	}
}

// emitRunEnd publishes the bracketing RUN_DONE or RUN_ERROR event.
func emitRunEnd(hub *progress.Hub, runID, jobID string, snap crawl.Snapshot, saved crawl.SaveOutcome, runErr error, at time.Time) {
	evt := progress.Event{
		RunID:     runID,
		JobID:     jobID,
		TS:        at,
		Stage:     progress.StageRunDone,
		Status:    string(snap.Status),
		Completed: snap.Completed,
		Total:     snap.Total,
		Note:      fmt.Sprintf("saved=%d skipped=%d failed=%d", saved.Saved, saved.Skipped, saved.Failed),
	}
	if runErr != nil {
		evt.Stage = progress.StageRunError
		evt.Note = runErr.Error()
	}
	hub.Emit(evt)
}

// recordRunFinish closes out the ledger row and records the saved files.
func recordRunFinish(ctx context.Context, a *app.App, runID string, saved crawl.SaveOutcome, runErr error, at time.Time) {
	if a.Ledger == nil {
		return
	}
	status := ledger.RunStatusCompleted
	errText := ""
	if runErr != nil {
		status = ledger.RunStatusFailed
		errText = runErr.Error()
	}
	if err := a.Ledger.FinishRun(ctx, runID, status, errText, saved.Saved, at); err != nil {
		a.Logger.Warn("recording run finish failed", zap.Error(err))
	}
	for _, file := range saved.Files {
		if err := a.Ledger.RecordFile(ctx, runID, file, at); err != nil {
			a.Logger.Warn("recording saved file failed",
				zap.String("file", file.Name),
				zap.Error(err),
			)
		}
	}
}

// publishCrawlFinished announces the terminal run state to downstream
// consumers. Publish failures are logged, never fatal: the pages are already
// on disk.
func publishCrawlFinished(ctx context.Context, a *app.App, evt publisher.CrawlFinished) {
	if a.Publisher == nil {
		return
	}
	if _, err := a.Publisher.Publish(ctx, publisher.TopicCrawlFinished, evt); err != nil {
		a.Logger.Warn("publishing crawl-finished event failed", zap.Error(err))
	}
}
