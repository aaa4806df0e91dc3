// Package firecrawl provides a client for the Firecrawl crawl API. This
// package centralizes every remote crawl-service interaction: job submission
// and status retrieval.
package firecrawl

import (
	"errors"
	"fmt"

	"github.com/autorag/harvester/internal/crawl"
)

// ErrMalformedResponse reports a 2xx reply missing a required field.
var ErrMalformedResponse = errors.New("malformed firecrawl response")

// APIError represents a non-2xx reply from the Firecrawl API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl api error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// crawlRequest is the POST /v1/crawl body. Embedding Params flattens the
// per-job knobs next to the url field, matching the API schema.
type crawlRequest struct {
	URL string `json:"url"`
	crawl.Params
}

// crawlResponse is the POST /v1/crawl reply.
type crawlResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// pageMetadata carries the per-page metadata block; only the source URL is
// consumed.
type pageMetadata struct {
	SourceURL string `json:"sourceURL"`
}

// pageData is one element of the status payload's data array.
type pageData struct {
	RawHTML  string       `json:"rawHtml"`
	Metadata pageMetadata `json:"metadata"`
}

// statusResponse is the GET /v1/crawl/{id} reply. Status is a pointer so a
// missing field is distinguishable from an empty one.
type statusResponse struct {
	Status    *string    `json:"status"`
	Completed int        `json:"completed"`
	Total     int        `json:"total"`
	Data      []pageData `json:"data"`
}

func (r *statusResponse) toSnapshot() (crawl.Snapshot, error) {
	if r.Status == nil || *r.Status == "" {
		return crawl.Snapshot{}, fmt.Errorf("status payload carries no status field: %w", ErrMalformedResponse)
	}
	snap := crawl.Snapshot{
		Status:    crawl.Status(*r.Status),
		Completed: r.Completed,
		Total:     r.Total,
	}
	if len(r.Data) > 0 {
		snap.Pages = make([]crawl.PageRecord, len(r.Data))
		for i, page := range r.Data {
			snap.Pages[i] = crawl.PageRecord{RawHTML: page.RawHTML, SourceURL: page.Metadata.SourceURL}
		}
	}
	return snap, nil
}
