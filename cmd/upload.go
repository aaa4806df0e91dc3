package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/app"
	"github.com/autorag/harvester/internal/clock/system"
	"github.com/autorag/harvester/internal/id/uuid"
	"github.com/autorag/harvester/internal/ledger"
	"github.com/autorag/harvester/internal/publisher"
	"github.com/autorag/harvester/internal/transfer"
)

// uploadOptions holds the flag overrides for one upload invocation.
type uploadOptions struct {
	dir     string
	pattern string
}

// newUploadCmd creates the 'upload' subcommand: push previously harvested
// HTML files to the configured storage backend.
func newUploadCmd() *cobra.Command {
	opts := &uploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload harvested HTML files to the configured bucket",
		Long: `Scans the harvest directory for HTML files and uploads each one to the
configured storage backend under its filename. Files that fail to upload
are reported and skipped; the batch continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpload(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "", "directory to upload from (defaults to crawl.output_dir)")
	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "glob of files to upload (default *.html)")

	return cmd
}

func runUpload(cmd *cobra.Command, opts *uploadOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := a.Cfg
	logger := a.Logger
	ctx := cmd.Context()

	dir := opts.dir
	if dir == "" {
		dir = cfg.Crawl.OutputDir
	}

	store, err := a.BlobStore(ctx)
	if err != nil {
		return fmt.Errorf("initialize storage backend: %w", err)
	}

	uploader, err := transfer.NewUploader(store, transfer.Config{
		ContentType: cfg.Storage.ContentType,
		Pattern:     opts.pattern,
	}, logger.Named("uploader"))
	if err != nil {
		return err
	}

	uploadID, err := uuid.New().NewID()
	if err != nil {
		return fmt.Errorf("generate upload id: %w", err)
	}
	clk := system.New()
	startedAt := clk.Now()

	logger.Info("starting upload batch",
		zap.String("upload_id", uploadID),
		zap.String("dir", dir),
		zap.String("backend", cfg.Storage.Backend),
		zap.String("bucket", cfg.Storage.Bucket),
	)

	outcome, err := uploader.Run(ctx, dir)
	if err != nil {
		return fmt.Errorf("upload from %s: %w", dir, err)
	}
	finishedAt := clk.Now()

	// Bookkeeping lands on a fresh context in case ctx was canceled after
	// the batch finished.
	bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	recordUpload(bg, a, ledger.UploadRecord{
		ID:         uploadID,
		Bucket:     cfg.Storage.Bucket,
		SourceDir:  dir,
		Succeeded:  outcome.Succeeded,
		Failed:     outcome.Failed,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	})
	publishUploadFinished(bg, a, publisher.UploadFinished{
		Event:      publisher.TopicUploadFinished,
		UploadID:   uploadID,
		Bucket:     cfg.Storage.Bucket,
		SourceDir:  dir,
		Succeeded:  outcome.Succeeded,
		Failed:     outcome.Failed,
		FinishedAt: finishedAt,
	})

	logger.Info("upload finished",
		zap.String("upload_id", uploadID),
		zap.Int("succeeded", outcome.Succeeded),
		zap.Int("failed", outcome.Failed),
	)
	return nil
}

func recordUpload(ctx context.Context, a *app.App, rec ledger.UploadRecord) {
	if a.Ledger == nil {
		return
	}
	if err := a.Ledger.RecordUpload(ctx, rec); err != nil {
		a.Logger.Warn("recording upload failed", zap.Error(err))
	}
}

func publishUploadFinished(ctx context.Context, a *app.App, evt publisher.UploadFinished) {
	if a.Publisher == nil {
		return
	}
	if _, err := a.Publisher.Publish(ctx, publisher.TopicUploadFinished, evt); err != nil {
		a.Logger.Warn("publishing upload-finished event failed", zap.Error(err))
	}
}
