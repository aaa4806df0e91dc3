// Package transfer uploads previously harvested page files from a local
// directory into a blob store.
package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/metrics"
	"github.com/autorag/harvester/internal/storage"
)

const (
	// DefaultContentType is applied to every uploaded object.
	DefaultContentType = "text/html"

	// DefaultPattern selects the files to upload from the source directory.
	DefaultPattern = "*.html"
)

// Config controls an upload batch.
type Config struct {
	// ContentType is set on every uploaded object. Defaults to text/html.
	ContentType string
	// Pattern is the glob selecting files inside the source directory.
	// Defaults to *.html.
	Pattern string
}

// Uploader copies matching files from a directory into a blob store, one
// object per file, keyed by the file's base name.
type Uploader struct {
	store  storage.BlobStore
	cfg    Config
	logger *zap.Logger
}

// NewUploader creates an Uploader writing through store.
func NewUploader(store storage.BlobStore, cfg Config, logger *zap.Logger) (*Uploader, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultContentType
	}
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{store: store, cfg: cfg, logger: logger}, nil
}

// Outcome aggregates one upload batch.
type Outcome struct {
	Succeeded int
	Failed    int
}

// Run uploads every file matching the pattern under dir. A file that fails to
// upload is logged and counted; the batch continues with the next one. Run
// returns an error only when the source directory itself is unusable. An
// empty match is not an error, just a warning.
func (u *Uploader) Run(ctx context.Context, dir string) (Outcome, error) {
	var out Outcome

	info, err := os.Stat(dir)
	if err != nil {
		return out, fmt.Errorf("stat source directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return out, fmt.Errorf("source path %s is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, u.cfg.Pattern))
	if err != nil {
		return out, fmt.Errorf("scan source directory %s: %w", dir, err)
	}
	if len(matches) == 0 {
		u.logger.Warn("no files matched, nothing to upload",
			zap.String("dir", dir),
			zap.String("pattern", u.cfg.Pattern),
		)
		return out, nil
	}

	u.logger.Info("uploading files",
		zap.String("dir", dir),
		zap.Int("files", len(matches)),
	)

	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("upload interrupted: %w", err)
		}
		key := filepath.Base(path)
		uri, err := u.uploadOne(ctx, path, key)
		if err != nil {
			metrics.ObserveUpload("failed")
			out.Failed++
			u.logger.Error("failed to upload file",
				zap.String("file", path),
				zap.Error(err),
			)
			continue
		}
		metrics.ObserveUpload("ok")
		out.Succeeded++
		u.logger.Info("uploaded file",
			zap.String("key", key),
			zap.String("uri", uri),
		)
	}

	u.logger.Info("upload batch finished",
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

func (u *Uploader) uploadOne(ctx context.Context, path, key string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the configured source directory glob.
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only descriptor

	uri, err := u.store.PutObject(ctx, key, u.cfg.ContentType, f)
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return uri, nil
}
