package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrSetup indicates the run could not begin (e.g. the catalog could not be preloaded).
	ErrSetup = errors.New("run setup failed")

	// ErrListing indicates the inventory listing failed. Batches flushed before
	// the failure remain in the catalog.
	ErrListing = errors.New("inventory listing failed")

	// ErrPersistence indicates a batch could not be written to the catalog, even
	// after retrying.
	ErrPersistence = errors.New("catalog write failed")

	// ErrAborted indicates the run was stopped on the first item failure.
	ErrAborted = errors.New("run aborted on item failure")

	// ErrFailureRateExceeded indicates the proportion of failed items passed
	// the configured maximum.
	ErrFailureRateExceeded = errors.New("item failure rate exceeded")
)

const (
	stageDetail  = "detail"
	stageEnrich  = "enrich"
	stageCredits = "credits"
	stageResolve = "resolve"
)

// stageError associates an item failure with the reconciliation stage at which it occurred.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

func stageOf(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}

	return "unknown"
}

func atStage(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

// ErrRunInProgress is returned when a run is requested for a library which is
// already being reconciled.
var ErrRunInProgress = errors.New("library is already being reconciled")
