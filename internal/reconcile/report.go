package reconcile

import (
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/failure"
	"github.com/hbomb79/Curator/internal/inventory"
)

// Report summarises a reconciliation run. A report is returned even when the run
// fails part way through, reflecting the batches which were flushed.
type Report struct {
	RunID           uuid.UUID      `json:"run_id"`
	LibraryID       string         `json:"library_id"`
	Kind            inventory.Kind `json:"kind"`
	Processed       int            `json:"processed"`
	Created         int            `json:"created"`
	Skipped         int            `json:"skipped"`
	Failed          int            `json:"failed"`
	Batches         int            `json:"batches"`
	EntitiesCreated int64          `json:"entities_created"`
	StartedAt       time.Time      `json:"started_at"`
	Duration        time.Duration  `json:"duration"`
	Aborted         bool           `json:"aborted"`
	Error           string         `json:"error,omitempty"`
}

func (report *Report) FailureRate() float64 {
	return failure.Rate(report.Processed, report.Failed)
}
