package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/hbomb79/Curator/internal/reconcile"
)

// libraryLocks hands out an advisory file lock per library, so two
// processes (or two runs within one process) never reconcile the same
// library concurrently.
type libraryLocks struct {
	dir string
}

func (locks libraryLocks) acquire(libraryID string) (*flock.Flock, error) {
	if err := os.MkdirAll(locks.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", locks.dir, err)
	}

	lock := flock.New(filepath.Join(locks.dir, lockName(libraryID)))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock library %s: %w", libraryID, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", reconcile.ErrRunInProgress, libraryID)
	}

	return lock, nil
}

func lockName(libraryID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, libraryID)

	return "library-" + safe + ".lock"
}
