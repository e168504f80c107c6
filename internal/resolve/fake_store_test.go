package resolve_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/catalog"
	"github.com/stretchr/testify/mock"
)

// memoryStore is an in-memory EntityStore which enforces the same natural key
// uniqueness as the real catalog tables and counts every create call.
type memoryStore struct {
	sync.Mutex
	createDelay time.Duration

	genres  map[string]*catalog.Genre
	moods   map[string]*catalog.Mood
	studios map[string]*catalog.Studio
	people  []*catalog.Person
	albums  map[string]*catalog.Album
	paths   []string

	creates map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		genres:  map[string]*catalog.Genre{},
		moods:   map[string]*catalog.Mood{},
		studios: map[string]*catalog.Studio{},
		albums:  map[string]*catalog.Album{},
		creates: map[string]int{},
	}
}

func (store *memoryStore) createCount(kind string) int {
	store.Lock()
	defer store.Unlock()
	return store.creates[kind]
}

func (store *memoryStore) pause() {
	if store.createDelay > 0 {
		time.Sleep(store.createDelay)
	}
}

func (store *memoryStore) ListGenres(context.Context) ([]*catalog.Genre, error) {
	store.Lock()
	defer store.Unlock()
	out := make([]*catalog.Genre, 0, len(store.genres))
	for _, g := range store.genres {
		out = append(out, g)
	}
	return out, nil
}

func (store *memoryStore) ListMoods(context.Context) ([]*catalog.Mood, error) {
	store.Lock()
	defer store.Unlock()
	out := make([]*catalog.Mood, 0, len(store.moods))
	for _, m := range store.moods {
		out = append(out, m)
	}
	return out, nil
}

func (store *memoryStore) ListStudios(context.Context) ([]*catalog.Studio, error) {
	store.Lock()
	defer store.Unlock()
	out := make([]*catalog.Studio, 0, len(store.studios))
	for _, s := range store.studios {
		out = append(out, s)
	}
	return out, nil
}

func (store *memoryStore) ListMovieSourcePaths(context.Context) ([]string, error) {
	return store.paths, nil
}

func (store *memoryStore) ListTrackSourcePaths(context.Context) ([]string, error) {
	return nil, nil
}

func (store *memoryStore) FindPersonByName(_ context.Context, name string) (*catalog.Person, error) {
	store.pause()
	store.Lock()
	defer store.Unlock()
	for _, p := range store.people {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

// idOrNew mirrors the writer, which keeps a proposed identifier.
func idOrNew(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

func (store *memoryStore) CreateGenre(_ context.Context, genre *catalog.Genre) (*catalog.Genre, error) {
	store.pause()
	store.Lock()
	defer store.Unlock()
	store.creates["genre"]++
	key := string(genre.Domain) + "/" + genre.Tag
	if g, ok := store.genres[key]; ok {
		return g, nil
	}
	g := &catalog.Genre{ID: idOrNew(genre.ID), Domain: genre.Domain, Tag: genre.Tag}
	store.genres[key] = g
	return g, nil
}

func (store *memoryStore) CreateMood(_ context.Context, mood *catalog.Mood) (*catalog.Mood, error) {
	store.pause()
	store.Lock()
	defer store.Unlock()
	store.creates["mood"]++
	if m, ok := store.moods[mood.Tag]; ok {
		return m, nil
	}
	m := &catalog.Mood{ID: idOrNew(mood.ID), Tag: mood.Tag}
	store.moods[mood.Tag] = m
	return m, nil
}

func (store *memoryStore) CreateStudio(_ context.Context, studio *catalog.Studio) (*catalog.Studio, error) {
	store.pause()
	store.Lock()
	defer store.Unlock()
	store.creates["studio"]++
	if s, ok := store.studios[studio.Name]; ok {
		return s, nil
	}
	s := &catalog.Studio{ID: idOrNew(studio.ID), Name: studio.Name, Country: studio.Country}
	store.studios[studio.Name] = s
	return s, nil
}

func (store *memoryStore) CreatePerson(_ context.Context, person *catalog.Person) (*catalog.Person, error) {
	store.pause()
	store.Lock()
	defer store.Unlock()
	store.creates["person"]++
	p := &catalog.Person{ID: idOrNew(person.ID), Name: person.Name}
	store.people = append(store.people, p)
	return p, nil
}

func (store *memoryStore) CreateAlbum(_ context.Context, album *catalog.Album) (*catalog.Album, error) {
	store.pause()
	store.Lock()
	defer store.Unlock()
	store.creates["album"]++
	key := album.ArtistID.String() + "/" + album.Title
	if a, ok := store.albums[key]; ok {
		return a, nil
	}
	a := &catalog.Album{ID: idOrNew(album.ID), Title: album.Title, ArtistID: album.ArtistID}
	store.albums[key] = a
	return a, nil
}

// failingStore wraps the memory store, allowing individual calls to be
// overridden using testify expectations.
type failingStore struct {
	*memoryStore
	mock.Mock
}

func (store *failingStore) CreateGenre(ctx context.Context, genre *catalog.Genre) (*catalog.Genre, error) {
	args := store.Called(genre.Domain, genre.Tag)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return store.memoryStore.CreateGenre(ctx, genre)
}
