package crawl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/metrics"
)

// Persister writes page records into one directory, each under a fresh
// random name so filenames never derive from page URLs and never collide.
type Persister struct {
	dir    string
	ids    IDGenerator
	hasher Hasher
	logger *zap.Logger
}

// NewPersister returns a Persister rooted at dir. The hasher may be nil, in
// which case saved files carry no content digest.
func NewPersister(dir string, ids IDGenerator, hasher Hasher, logger *zap.Logger) (*Persister, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{dir: dir, ids: ids, hasher: hasher, logger: logger}, nil
}

// Dir returns the output directory.
func (p *Persister) Dir() string {
	return p.dir
}

// SaveAll writes every record with content to its own file and returns the
// batch counters. A record without content is skipped with a warning and not
// counted as saved; a failed write is logged and counted without aborting
// the batch. Only an output directory that cannot be created fails the
// whole batch.
func (p *Persister) SaveAll(ctx context.Context, pages []PageRecord) (SaveOutcome, error) {
	var out SaveOutcome
	if err := os.MkdirAll(p.dir, 0o750); err != nil {
		return out, fmt.Errorf("create output dir %s: %w", p.dir, err)
	}
	p.logger.Info("saving crawl results",
		zap.String("dir", p.dir),
		zap.Int("records", len(pages)),
	)

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("persisting interrupted: %w", err)
		}
		sourceURL := page.SourceURL
		if sourceURL == "" {
			sourceURL = fmt.Sprintf("unknown_url_%d", i)
		}
		if page.RawHTML == "" {
			metrics.ObservePage("skipped")
			out.Skipped++
			p.logger.Warn("no HTML content for page, skipping",
				zap.Int("index", i),
				zap.String("source_url", sourceURL),
			)
			continue
		}
		saved, err := p.saveOne(page.RawHTML, sourceURL)
		if err != nil {
			metrics.ObservePage("failed")
			out.Failed++
			p.logger.Error("failed to save page",
				zap.String("source_url", sourceURL),
				zap.Error(err),
			)
			continue
		}
		metrics.ObservePage("saved")
		out.Saved++
		out.Files = append(out.Files, saved)
		p.logger.Debug("saved page",
			zap.String("source_url", sourceURL),
			zap.String("file", saved.Name),
			zap.Int("bytes", saved.Bytes),
		)
	}

	p.logger.Info("finished saving crawl results",
		zap.Int("saved", out.Saved),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

func (p *Persister) saveOne(html, sourceURL string) (SavedFile, error) {
	id, err := p.ids.NewV4ID()
	if err != nil {
		return SavedFile{}, fmt.Errorf("generate filename: %w", err)
	}
	name := fmt.Sprintf("page_%s.html", id)
	body := []byte(html)
	if err := os.WriteFile(filepath.Join(p.dir, name), body, 0o600); err != nil {
		return SavedFile{}, fmt.Errorf("write %s: %w", name, err)
	}
	file := SavedFile{Name: name, SourceURL: sourceURL, Bytes: len(body)}
	if p.hasher != nil {
		if digest, err := p.hasher.Hash(body); err == nil {
			file.ContentHash = digest
		}
	}
	return file, nil
}
