// Package resolve maps the names of genres, moods, studios, people and albums on to
// catalog entities, creating the entities which do not yet exist.
package resolve

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/catalog"
	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/hbomb79/Curator/pkg/sync"
)

var log = logger.Get("Resolver")

type (
	// EntityStore is the subset of the catalog writer used to load and create entities.
	EntityStore interface {
		ListGenres(ctx context.Context) ([]*catalog.Genre, error)
		ListMoods(ctx context.Context) ([]*catalog.Mood, error)
		ListStudios(ctx context.Context) ([]*catalog.Studio, error)
		ListMovieSourcePaths(ctx context.Context) ([]string, error)
		ListTrackSourcePaths(ctx context.Context) ([]string, error)
		FindPersonByName(ctx context.Context, name string) (*catalog.Person, error)

		CreateGenre(ctx context.Context, genre *catalog.Genre) (*catalog.Genre, error)
		CreateMood(ctx context.Context, mood *catalog.Mood) (*catalog.Mood, error)
		CreateStudio(ctx context.Context, studio *catalog.Studio) (*catalog.Studio, error)
		CreatePerson(ctx context.Context, person *catalog.Person) (*catalog.Person, error)
		CreateAlbum(ctx context.Context, album *catalog.Album) (*catalog.Album, error)
	}

	// Resolver deduplicates entities across all items of a single run. A Resolver
	// (and the cache it owns) must not be shared between runs.
	Resolver struct {
		store   EntityStore
		cache   *Cache
		known   sync.TypedSyncMap[string, struct{}]
		created atomic.Int64
	}
)

func NewResolver(store EntityStore) *Resolver {
	return &Resolver{store: store, cache: NewCache()}
}

// Preload bulk-loads every genre, mood and studio in to the cache, along with
// the source paths of the items of the given kind already in the catalog.
func (resolver *Resolver) Preload(ctx context.Context, kind inventory.Kind) error {
	genres, err := resolver.store.ListGenres(ctx)
	if err != nil {
		return fmt.Errorf("failed to preload genres: %w", err)
	}
	for _, g := range genres {
		resolver.cache.Seed(Key{genreDomain(g.Domain), g.Tag}, g.ID)
	}

	moods, err := resolver.store.ListMoods(ctx)
	if err != nil {
		return fmt.Errorf("failed to preload moods: %w", err)
	}
	for _, m := range moods {
		resolver.cache.Seed(Key{MoodDomain, m.Tag}, m.ID)
	}

	studios, err := resolver.store.ListStudios(ctx)
	if err != nil {
		return fmt.Errorf("failed to preload studios: %w", err)
	}
	for _, s := range studios {
		resolver.cache.Seed(Key{StudioDomain, s.Name}, s.ID)
	}

	var paths []string
	switch kind {
	case inventory.KindMovie:
		paths, err = resolver.store.ListMovieSourcePaths(ctx)
	case inventory.KindMusic:
		paths, err = resolver.store.ListTrackSourcePaths(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to preload existing %s items: %w", kind, err)
	}
	for _, p := range paths {
		resolver.known.Store(p, struct{}{})
	}

	log.Emit(logger.SUCCESS, "Preloaded %d genres, %d moods, %d studios and %d existing %s items\n", len(genres), len(moods), len(studios), len(paths), kind)
	return nil
}

// Claim records the source path as seen, returning false if it had already been
// claimed. This prevents two inventory items pointing at the same file from both
// being assembled.
func (resolver *Resolver) Claim(sourcePath string) bool {
	_, loaded := resolver.known.LoadOrStore(sourcePath, struct{}{})
	return !loaded
}

// Created returns the number of entities this resolver has inserted in to the
// catalog. Entities which already existed are not counted.
func (resolver *Resolver) Created() int64 { return resolver.created.Load() }

// ResolveGenres returns the identifiers for the genre names given, in order of first
// appearance. Duplicate names collapse to a single identifier. An empty list
// resolves to the shared Unknown genre of the domain.
func (resolver *Resolver) ResolveGenres(ctx context.Context, domain catalog.GenreDomain, names []string) ([]uuid.UUID, error) {
	return resolver.resolveTags(ctx, genreDomain(domain), names, func(tag string) (uuid.UUID, bool, error) {
		proposed := &catalog.Genre{ID: uuid.New(), Domain: domain, Tag: tag}
		genre, err := resolver.store.CreateGenre(ctx, proposed)
		if err != nil {
			return uuid.Nil, false, err
		}
		return genre.ID, genre.ID == proposed.ID, nil
	})
}

// ResolveMoods behaves like ResolveGenres, but within the mood namespace.
func (resolver *Resolver) ResolveMoods(ctx context.Context, names []string) ([]uuid.UUID, error) {
	return resolver.resolveTags(ctx, MoodDomain, names, func(tag string) (uuid.UUID, bool, error) {
		proposed := &catalog.Mood{ID: uuid.New(), Tag: tag}
		mood, err := resolver.store.CreateMood(ctx, proposed)
		if err != nil {
			return uuid.Nil, false, err
		}
		return mood.ID, mood.ID == proposed.ID, nil
	})
}

// ResolveStudios returns the identifiers for the studios given, deduplicated by
// exact name. Studios with an empty name are ignored.
func (resolver *Resolver) ResolveStudios(ctx context.Context, studios []*catalog.Studio) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(studios))
	seen := make(map[string]struct{}, len(studios))
	for _, studio := range studios {
		if studio.Name == "" {
			continue
		}
		if _, ok := seen[studio.Name]; ok {
			continue
		}
		seen[studio.Name] = struct{}{}

		id, err := resolver.getOrCreate(ctx, Key{StudioDomain, studio.Name}, func() (uuid.UUID, bool, error) {
			proposed := *studio
			proposed.ID = uuid.New()
			created, err := resolver.store.CreateStudio(ctx, &proposed)
			if err != nil {
				return uuid.Nil, false, err
			}
			return created.ID, created.ID == proposed.ID, nil
		})
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// ResolvePerson returns the identifier of the person with the exact name given. People
// are not preloaded; a miss queries the store by name, creating the person only if
// no match exists. Concurrent callers for the same name share a single lookup.
func (resolver *Resolver) ResolvePerson(ctx context.Context, person *catalog.Person) (uuid.UUID, error) {
	if person.Name == "" {
		return uuid.Nil, fmt.Errorf("cannot resolve person with empty name")
	}

	return resolver.getOrCreate(ctx, Key{PersonDomain, person.Name}, func() (uuid.UUID, bool, error) {
		existing, err := resolver.store.FindPersonByName(ctx, person.Name)
		if err != nil {
			return uuid.Nil, false, err
		}
		if existing != nil {
			return existing.ID, false, nil
		}

		created, err := resolver.store.CreatePerson(ctx, person)
		if err != nil {
			return uuid.Nil, false, err
		}
		return created.ID, true, nil
	})
}

// ResolvePeople resolves each person in order. The returned slice is parallel
// to the input; the same person appearing twice yields the same identifier.
func (resolver *Resolver) ResolvePeople(ctx context.Context, people []*catalog.Person) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(people))
	for i, person := range people {
		id, err := resolver.ResolvePerson(ctx, person)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	return ids, nil
}

// ResolveAlbum returns the identifier of the album with the given title by the
// given artist, creating it if necessary.
func (resolver *Resolver) ResolveAlbum(ctx context.Context, album *catalog.Album) (uuid.UUID, error) {
	key := Key{AlbumDomain, album.ArtistID.String() + "/" + album.Title}
	return resolver.getOrCreate(ctx, key, func() (uuid.UUID, bool, error) {
		proposed := *album
		proposed.ID = uuid.New()
		created, err := resolver.store.CreateAlbum(ctx, &proposed)
		if err != nil {
			return uuid.Nil, false, err
		}
		return created.ID, created.ID == proposed.ID, nil
	})
}

func (resolver *Resolver) resolveTags(ctx context.Context, domain Domain, names []string, create func(string) (uuid.UUID, bool, error)) ([]uuid.UUID, error) {
	tags := uniqueNonEmpty(names)
	if len(tags) == 0 {
		tags = []string{catalog.UnknownTag}
	}

	ids := make([]uuid.UUID, 0, len(tags))
	for _, tag := range tags {
		id, err := resolver.getOrCreate(ctx, Key{domain, tag}, func() (uuid.UUID, bool, error) { return create(tag) })
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// getOrCreate resolves the key through the cache. The create function reports
// whether it inserted a new entity, as opposed to finding an existing one.
func (resolver *Resolver) getOrCreate(ctx context.Context, key Key, create func() (uuid.UUID, bool, error)) (uuid.UUID, error) {
	if id, ok := resolver.cache.Lookup(key); ok {
		return id, nil
	}

	var inserted bool
	id, _, err := resolver.cache.GetOrCreate(ctx, key, func() (uuid.UUID, error) {
		id, ok, err := create()
		inserted = ok
		return id, err
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve %s %q: %w", key.Domain, key.Name, err)
	}

	if inserted {
		resolver.created.Add(1)
		log.Verbosef("Resolved new %s %q -> %s\n", key.Domain, key.Name, id)
		if key.Domain != AlbumDomain {
			warnNearDuplicates(resolver.cache, key)
		}
	}

	return id, nil
}

func genreDomain(domain catalog.GenreDomain) Domain {
	if domain == catalog.MusicGenre {
		return MusicGenreDomain
	}

	return MovieGenreDomain
}

func uniqueNonEmpty(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		out = append(out, name)
	}

	return out
}
