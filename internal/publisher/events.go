package publisher

import "time"

// Topics announcing pipeline milestones. Downstream indexers subscribe to
// these to learn when fresh HTML is on disk or in the bucket.
const (
	TopicCrawlFinished  = "harvest.crawl.finished"
	TopicUploadFinished = "harvest.upload.finished"
)

// CrawlFinished announces a crawl run reaching a terminal state.
type CrawlFinished struct {
	Event        string    `json:"event"`
	RunID        string    `json:"run_id"`
	JobID        string    `json:"job_id"`
	TargetURL    string    `json:"target_url"`
	Status       string    `json:"status"`
	PagesSaved   int       `json:"pages_saved"`
	PagesSkipped int       `json:"pages_skipped"`
	PagesFailed  int       `json:"pages_failed"`
	OutputDir    string    `json:"output_dir"`
	FinishedAt   time.Time `json:"finished_at"`
}

// UploadFinished announces an upload batch completing.
type UploadFinished struct {
	Event      string    `json:"event"`
	UploadID   string    `json:"upload_id"`
	Bucket     string    `json:"bucket"`
	SourceDir  string    `json:"source_dir"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	FinishedAt time.Time `json:"finished_at"`
}
