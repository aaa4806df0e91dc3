// Package app wires the long-lived services behind a command invocation:
// logger, run ledger, completion-event publisher, and blob storage.
package app

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/config"
	"github.com/autorag/harvester/internal/ledger"
	"github.com/autorag/harvester/internal/logging"
	"github.com/autorag/harvester/internal/publisher"
	pubmemory "github.com/autorag/harvester/internal/publisher/memory"
	pubps "github.com/autorag/harvester/internal/publisher/pubsub"
	"github.com/autorag/harvester/internal/storage"
	"github.com/autorag/harvester/internal/storage/gcs"
	"github.com/autorag/harvester/internal/storage/local"
	"github.com/autorag/harvester/internal/storage/memory"
	"github.com/autorag/harvester/internal/storage/s3"
)

// App holds the shared services for one command invocation. Commands receive
// it through the command context and must call Close when done.
type App struct {
	Cfg       config.Config
	Logger    *zap.Logger
	Publisher publisher.Publisher
	// Ledger is nil when no database DSN is configured.
	Ledger *ledger.Store

	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	gcsClient       *gstorage.Client
}

// Build constructs the service container. Required services fail the build;
// optional ones (ledger, broker) degrade to disabled with a warning so a
// bare-bones deployment still crawls.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.App.Name, cfg.DebugEnabled())
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	logger.Info("initializing services",
		zap.String("environment", cfg.App.Environment),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	a := &App{Cfg: cfg, Logger: logger}
	if err := a.setupLedger(ctx); err != nil {
		return nil, err
	}
	if err := a.setupPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) setupLedger(ctx context.Context) error {
	if a.Cfg.Database.DSN == "" {
		a.Logger.Warn("no database dsn configured, run ledger disabled")
		return nil
	}
	store, err := ledger.New(ctx, ledger.Config{
		DSN:             a.Cfg.Database.DSN,
		MaxConns:        a.Cfg.Database.MaxConns,
		MinConns:        a.Cfg.Database.MinConns,
		MaxConnLifetime: a.Cfg.Database.MaxConnLifetime(),
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("connect run ledger: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	a.Ledger = store
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	projectID := a.Cfg.PubSub.ProjectID
	topicName := a.Cfg.PubSub.TopicName
	if projectID == "" || topicName == "" {
		a.Logger.Warn("pubsub not configured, completion events stay in memory")
		a.Publisher = pubmemory.New()
		return nil
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPublisher = client.Publisher(topicName)
	a.Publisher = pubps.New(a.pubsubPublisher)
	return nil
}

// BlobStore builds the configured storage backend. Construction is deferred
// to upload time so crawl-only invocations never touch bucket credentials.
func (a *App) BlobStore(ctx context.Context) (storage.BlobStore, error) {
	switch a.Cfg.Storage.Backend {
	case config.BackendS3:
		return s3.New(s3.Config{
			AccountID:       a.Cfg.Storage.S3.AccountID,
			AccessKeyID:     a.Cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: a.Cfg.Storage.S3.SecretAccessKey,
			Bucket:          a.Cfg.Storage.Bucket,
			Endpoint:        a.Cfg.Storage.S3.Endpoint,
			Region:          a.Cfg.Storage.S3.Region,
		})
	case config.BackendGCS:
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.gcsClient = client
		return gcs.New(client, gcs.Config{Bucket: a.Cfg.Storage.Bucket})
	case config.BackendLocal:
		return local.New(local.Config{BaseDir: a.Cfg.Storage.Local.BaseDir})
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.Cfg.Storage.Backend)
	}
}

// Close releases every service the container owns. Safe on a partially
// built App.
func (a *App) Close() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.Logger.Warn("closing pubsub client", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("closing gcs client", zap.Error(err))
		}
	}
	a.Ledger.Close()
	if a.Logger != nil {
		_ = a.Logger.Sync() //nolint:errcheck // sync to stderr fails harmlessly on some platforms
	}
}
