// Package crawl defines the remote crawl-job domain: submission parameters,
// status snapshots, the poll driver that waits for a job to finish, and the
// persister that writes returned pages to disk.
package crawl

// Status is the remote service's lifecycle tag for a job. Values outside the
// documented set are carried verbatim so schema drift stays observable.
type Status string

// Statuses documented by the remote crawl service.
const (
	StatusPending   Status = "pending"
	StatusScraping  Status = "scraping"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job is done and no further polls are useful.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Known reports whether the status belongs to the documented schema.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusScraping, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// ScrapeOptions mirror the remote scrapeOptions object controlling page
// extraction.
type ScrapeOptions struct {
	Formats            []string `json:"formats"`
	RemoveBase64Images bool     `json:"removeBase64Images"`
	OnlyMainContent    bool     `json:"onlyMainContent"`
}

// Params carries the per-job knobs passed through to the remote service. The
// service is the authority on acceptance; no range validation happens here.
type Params struct {
	Limit         int           `json:"limit"`
	MaxDepth      int           `json:"maxDepth"`
	ScrapeOptions ScrapeOptions `json:"scrapeOptions"`
}

// DefaultParams returns the standard parameters for a raw-HTML harvest.
func DefaultParams() Params {
	return Params{
		Limit:    10,
		MaxDepth: 5,
		ScrapeOptions: ScrapeOptions{
			Formats:            []string{"rawHtml"},
			RemoveBase64Images: true,
			OnlyMainContent:    true,
		},
	}
}

// PageRecord is one crawled page as returned by the remote service. RawHTML
// may be empty when the service produced no content for the page; SourceURL
// may be empty when the page metadata lacked one.
type PageRecord struct {
	RawHTML   string
	SourceURL string
}

// Snapshot is a point-in-time view of a remote job. Pages is populated only
// on completed jobs.
type Snapshot struct {
	Status    Status
	Completed int
	Total     int
	Pages     []PageRecord
}

// SavedFile describes one page file written by the Persister.
type SavedFile struct {
	Name        string
	SourceURL   string
	ContentHash string
	Bytes       int
}

// SaveOutcome aggregates one persistence batch.
type SaveOutcome struct {
	Saved   int
	Skipped int
	Failed  int
	Files   []SavedFile
}
