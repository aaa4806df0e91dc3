package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	// StageRunStart marks a successfully submitted crawl job.
	StageRunStart Stage = "RUN_START"
	// StagePoll mirrors one status fetch of the remote job.
	StagePoll Stage = "POLL"
	// StageRunDone marks a run whose results were persisted.
	StageRunDone Stage = "RUN_DONE"
	// StageRunError marks a run that ended with an error.
	StageRunError Stage = "RUN_ERROR"
)

// Event captures a single observation of a harvest run. Poll events mirror
// the remote job snapshot; run events bracket the whole invocation.
type Event struct {
	// RunID uniquely identifies the local run.
	RunID string
	// JobID is the remote service's opaque job id.
	JobID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Status carries the raw remote status string on poll events.
	Status string
	// Completed and Total are the remote page progress counters.
	Completed int
	Total     int
	// Note lets emitters attach low-volume context (e.g. error text or a
	// result summary).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StagePoll:
		if e.Status == "" {
			return errors.New("poll events require a status")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Completed < 0 || e.Total < 0 {
		return errors.New("progress counters must be >= 0")
	}
	return nil
}
