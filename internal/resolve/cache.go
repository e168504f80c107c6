package resolve

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/pkg/sync"
)

type Domain string

const (
	MovieGenreDomain Domain = "genre:movie"
	MusicGenreDomain Domain = "genre:music"
	MoodDomain       Domain = "mood"
	StudioDomain     Domain = "studio"
	PersonDomain     Domain = "person"
	AlbumDomain      Domain = "album"
)

type (
	// Key is the natural key of a catalog entity. Names are compared
	// exactly; two keys in different domains never collide.
	Key struct {
		Domain Domain
		Name   string
	}

	// entry is a cache slot which may still be in the process of being
	// persisted. Readers must wait for done to be closed before reading
	// id or err.
	entry struct {
		done chan struct{}
		id   uuid.UUID
		err  error
	}

	// Cache maps natural keys to entity identifiers for the lifetime of a
	// single reconciliation run. The first caller to miss on a key becomes
	// responsible for persisting the entity; concurrent callers for the same
	// key wait for that outcome rather than creating their own.
	Cache struct {
		entries sync.TypedSyncMap[Key, *entry]
	}
)

func NewCache() *Cache {
	return &Cache{}
}

// Seed stores an already-persisted entity in the cache.
func (cache *Cache) Seed(key Key, id uuid.UUID) {
	e := &entry{done: make(chan struct{}), id: id}
	close(e.done)
	cache.entries.Store(key, e)
}

// Lookup returns the identifier for the key if it has been persisted. Entries
// which are still being created are reported as absent.
func (cache *Cache) Lookup(key Key) (uuid.UUID, bool) {
	e, ok := cache.entries.Load(key)
	if !ok {
		return uuid.Nil, false
	}

	select {
	case <-e.done:
		return e.id, e.err == nil
	default:
		return uuid.Nil, false
	}
}

// GetOrCreate returns the identifier cached for the key. On a miss, the create
// function is invoked exactly once across all concurrent callers for the key, and
// every caller receives its outcome. If create fails the entry is evicted so that a
// later caller may try again, and the error is returned to all callers waiting on it.
//
// The returned bool is true if this caller performed the creation.
func (cache *Cache) GetOrCreate(ctx context.Context, key Key, create func() (uuid.UUID, error)) (uuid.UUID, bool, error) {
	candidate := &entry{done: make(chan struct{})}
	e, loaded := cache.entries.LoadOrStore(key, candidate)
	if loaded {
		select {
		case <-e.done:
			if e.err != nil {
				return uuid.Nil, false, fmt.Errorf("creation of %s %q failed: %w", key.Domain, key.Name, e.err)
			}
			return e.id, false, nil
		case <-ctx.Done():
			return uuid.Nil, false, ctx.Err()
		}
	}

	// Failed entries are evicted before waiters are released.
	candidate.err = fmt.Errorf("creation of %s %q did not complete", key.Domain, key.Name)
	defer func() {
		if candidate.err != nil {
			cache.entries.CompareAndDelete(key, candidate)
		}
		close(candidate.done)
	}()

	id, err := create()
	candidate.id, candidate.err = id, err
	if err != nil {
		return uuid.Nil, true, err
	}

	return id, true, nil
}

// Names returns the persisted names held in the cache for the given domain.
func (cache *Cache) Names(domain Domain) []string {
	var names []string
	cache.entries.Range(func(k Key, e *entry) bool {
		if k.Domain != domain {
			return true
		}

		select {
		case <-e.done:
			if e.err == nil {
				names = append(names, k.Name)
			}
		default:
		}
		return true
	})

	return names
}
