// Package storage defines the blob store abstraction harvested pages are
// uploaded through. It keeps the application independent of a specific
// backend: Cloudflare R2 through the S3 API, Google Cloud Storage, the local
// filesystem for development, or memory for tests.
package storage

import (
	"context"
	"io"
)

// BlobStore is the common interface for a blob storage backend.
type BlobStore interface {
	// PutObject uploads data under key with the given content type and
	// returns the stored object's URI.
	PutObject(ctx context.Context, key string, contentType string, data io.Reader) (string, error)
}
