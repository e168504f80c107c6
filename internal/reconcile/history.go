package reconcile

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunEntry is a single run as held by the History.
type RunEntry struct {
	ID      uuid.UUID  `json:"id"`
	Request RunRequest `json:"request"`
	Status  RunStatus  `json:"status"`
	Started time.Time  `json:"started"`
	Report  *Report    `json:"report,omitempty"`
}

// History retains the most recent runs performed by this process.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []*RunEntry
}

func NewHistory(limit int) *History {
	return &History{limit: max(limit, 1)}
}

func (history *History) Start(id uuid.UUID, request RunRequest) {
	history.mu.Lock()
	defer history.mu.Unlock()

	history.entries = append(history.entries, &RunEntry{ID: id, Request: request, Status: RunRunning, Started: time.Now()})
	if len(history.entries) > history.limit {
		history.entries = history.entries[len(history.entries)-history.limit:]
	}
}

func (history *History) Finish(id uuid.UUID, report *Report, err error) {
	history.mu.Lock()
	defer history.mu.Unlock()

	for _, entry := range history.entries {
		if entry.ID == id {
			entry.Report = report
			entry.Status = RunSucceeded
			if err != nil {
				entry.Status = RunFailed
			}
			return
		}
	}
}

// List returns a copy of the runs held, most recent first.
func (history *History) List() []RunEntry {
	history.mu.Lock()
	defer history.mu.Unlock()

	out := make([]RunEntry, 0, len(history.entries))
	for _, entry := range history.entries {
		out = append(out, *entry)
	}
	slices.Reverse(out)

	return out
}

func (history *History) Get(id uuid.UUID) (RunEntry, bool) {
	history.mu.Lock()
	defer history.mu.Unlock()

	for _, entry := range history.entries {
		if entry.ID == id {
			return *entry, true
		}
	}

	return RunEntry{}, false
}
