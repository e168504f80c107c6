package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/catalog"
	"github.com/hbomb79/Curator/internal/failure"
	"github.com/hbomb79/Curator/internal/http/tmdb"
	"github.com/hbomb79/Curator/internal/inventory"
)

// fakeInventory serves a fixed, ordered set of item details.
type fakeInventory struct {
	order      []string
	details    map[string]*inventory.ItemDetail
	detailErrs map[string]error
	listErr    error
	pageSize   int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{details: map[string]*inventory.ItemDetail{}, detailErrs: map[string]error{}, pageSize: 25}
}

func (inv *fakeInventory) add(detail *inventory.ItemDetail) {
	inv.order = append(inv.order, detail.ID)
	inv.details[detail.ID] = detail
}

func (inv *fakeInventory) ListItems(ctx context.Context, _ string, _ inventory.Kind) iter.Seq2[inventory.Item, error] {
	return inventory.Paginate(ctx, inv.pageSize, func(_ context.Context, start int, size int) ([]inventory.Item, int, error) {
		if inv.listErr != nil {
			return nil, 0, inv.listErr
		}

		end := min(start+size, len(inv.order))
		items := make([]inventory.Item, 0, size)
		for _, id := range inv.order[start:end] {
			items = append(items, inventory.Item{ID: id, Title: inv.details[id].Title})
		}
		return items, len(inv.order), nil
	})
}

func (inv *fakeInventory) GetItemDetail(_ context.Context, itemID string) (*inventory.ItemDetail, error) {
	if err, ok := inv.detailErrs[itemID]; ok {
		return nil, err
	}
	detail, ok := inv.details[itemID]
	if !ok {
		return nil, inventory.Wrap(inventory.ErrNotFound, itemID, nil)
	}

	copied := *detail
	return &copied, nil
}

// fakeEnricher serves TMDB movies and credits from memory. Unknown ids are
// reported as not found.
type fakeEnricher struct {
	movies  map[string]*tmdb.Movie
	credits map[string]*tmdb.Credits
	errs    map[string]error
}

func newFakeEnricher() *fakeEnricher {
	return &fakeEnricher{movies: map[string]*tmdb.Movie{}, credits: map[string]*tmdb.Credits{}, errs: map[string]error{}}
}

func (e *fakeEnricher) GetMovie(_ context.Context, id string) (*tmdb.Movie, error) {
	if err, ok := e.errs[id]; ok {
		return nil, err
	}
	if m, ok := e.movies[id]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("movie %s: %w", id, tmdb.ErrNotFound)
}

func (e *fakeEnricher) GetCredits(_ context.Context, id string) (*tmdb.Credits, error) {
	if c, ok := e.credits[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("credits %s: %w", id, tmdb.ErrNotFound)
}

func (e *fakeEnricher) PosterURL(path string) string   { return imageURL("w500", path) }
func (e *fakeEnricher) BackdropURL(path string) string { return imageURL("w1280", path) }
func (e *fakeEnricher) ProfileURL(path string) string  { return imageURL("w185", path) }
func (e *fakeEnricher) LogoURL(path string) string     { return imageURL("w185", path) }

func imageURL(size, path string) string {
	if path == "" {
		return ""
	}
	return "https://img/" + size + path
}

// memoryCatalog mimics the natural key uniqueness of the real catalog tables.
type memoryCatalog struct {
	sync.Mutex
	genres    map[string]*catalog.Genre
	moods     map[string]*catalog.Mood
	studios   map[string]*catalog.Studio
	people    []*catalog.Person
	albums    map[string]*catalog.Album
	movies    map[string]*catalog.MovieRecord
	tracks    map[string]*catalog.TrackRecord
	writes    int
	failWrite error
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		genres:  map[string]*catalog.Genre{},
		moods:   map[string]*catalog.Mood{},
		studios: map[string]*catalog.Studio{},
		albums:  map[string]*catalog.Album{},
		movies:  map[string]*catalog.MovieRecord{},
		tracks:  map[string]*catalog.TrackRecord{},
	}
}

func (c *memoryCatalog) counts() catalog.Counts {
	c.Lock()
	defer c.Unlock()
	return catalog.Counts{
		Movies:  len(c.movies),
		Tracks:  len(c.tracks),
		Albums:  len(c.albums),
		Genres:  len(c.genres),
		Moods:   len(c.moods),
		Studios: len(c.studios),
		People:  len(c.people),
	}
}

func (c *memoryCatalog) genreByID(id uuid.UUID) *catalog.Genre {
	c.Lock()
	defer c.Unlock()
	for _, g := range c.genres {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (c *memoryCatalog) studioByID(id uuid.UUID) *catalog.Studio {
	c.Lock()
	defer c.Unlock()
	for _, s := range c.studios {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (c *memoryCatalog) ListGenres(context.Context) ([]*catalog.Genre, error) {
	c.Lock()
	defer c.Unlock()
	out := make([]*catalog.Genre, 0, len(c.genres))
	for _, g := range c.genres {
		out = append(out, g)
	}
	return out, nil
}

func (c *memoryCatalog) ListMoods(context.Context) ([]*catalog.Mood, error) {
	c.Lock()
	defer c.Unlock()
	out := make([]*catalog.Mood, 0, len(c.moods))
	for _, m := range c.moods {
		out = append(out, m)
	}
	return out, nil
}

func (c *memoryCatalog) ListStudios(context.Context) ([]*catalog.Studio, error) {
	c.Lock()
	defer c.Unlock()
	out := make([]*catalog.Studio, 0, len(c.studios))
	for _, s := range c.studios {
		out = append(out, s)
	}
	return out, nil
}

func (c *memoryCatalog) ListMovieSourcePaths(context.Context) ([]string, error) {
	c.Lock()
	defer c.Unlock()
	out := make([]string, 0, len(c.movies))
	for p := range c.movies {
		out = append(out, p)
	}
	return out, nil
}

func (c *memoryCatalog) ListTrackSourcePaths(context.Context) ([]string, error) {
	c.Lock()
	defer c.Unlock()
	out := make([]string, 0, len(c.tracks))
	for p := range c.tracks {
		out = append(out, p)
	}
	return out, nil
}

func (c *memoryCatalog) FindPersonByName(_ context.Context, name string) (*catalog.Person, error) {
	c.Lock()
	defer c.Unlock()
	for _, p := range c.people {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (c *memoryCatalog) CreateGenre(_ context.Context, genre *catalog.Genre) (*catalog.Genre, error) {
	c.Lock()
	defer c.Unlock()
	key := string(genre.Domain) + "/" + genre.Tag
	if g, ok := c.genres[key]; ok {
		return g, nil
	}
	g := *genre
	c.genres[key] = &g
	return &g, nil
}

func (c *memoryCatalog) CreateMood(_ context.Context, mood *catalog.Mood) (*catalog.Mood, error) {
	c.Lock()
	defer c.Unlock()
	if m, ok := c.moods[mood.Tag]; ok {
		return m, nil
	}
	m := *mood
	c.moods[mood.Tag] = &m
	return &m, nil
}

func (c *memoryCatalog) CreateStudio(_ context.Context, studio *catalog.Studio) (*catalog.Studio, error) {
	c.Lock()
	defer c.Unlock()
	if s, ok := c.studios[studio.Name]; ok {
		return s, nil
	}
	s := *studio
	c.studios[studio.Name] = &s
	return &s, nil
}

func (c *memoryCatalog) CreatePerson(_ context.Context, person *catalog.Person) (*catalog.Person, error) {
	c.Lock()
	defer c.Unlock()
	p := *person
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	c.people = append(c.people, &p)
	return &p, nil
}

func (c *memoryCatalog) CreateAlbum(_ context.Context, album *catalog.Album) (*catalog.Album, error) {
	c.Lock()
	defer c.Unlock()
	key := album.ArtistID.String() + "/" + album.Title
	if a, ok := c.albums[key]; ok {
		return a, nil
	}
	a := *album
	c.albums[key] = &a
	return &a, nil
}

func (c *memoryCatalog) WriteMovies(_ context.Context, records []*catalog.MovieRecord) (catalog.WriteResult, error) {
	c.Lock()
	defer c.Unlock()
	if c.failWrite != nil {
		return catalog.WriteResult{}, c.failWrite
	}

	c.writes++
	var result catalog.WriteResult
	for _, r := range records {
		if _, ok := c.movies[r.Movie.SourcePath]; ok {
			result.Skipped++
			continue
		}
		c.movies[r.Movie.SourcePath] = r
		result.Created++
	}
	return result, nil
}

func (c *memoryCatalog) WriteTracks(_ context.Context, records []*catalog.TrackRecord) (catalog.WriteResult, error) {
	c.Lock()
	defer c.Unlock()
	if c.failWrite != nil {
		return catalog.WriteResult{}, c.failWrite
	}

	c.writes++
	var result catalog.WriteResult
	for _, r := range records {
		if _, ok := c.tracks[r.Track.SourcePath]; ok {
			result.Skipped++
			continue
		}
		c.tracks[r.Track.SourcePath] = r
		result.Created++
	}
	return result, nil
}

// recordingSink keeps failure records in memory.
type recordingSink struct {
	sync.Mutex
	records []failure.Context
	errs    []error
}

func (s *recordingSink) Record(err error, ctx failure.Context) error {
	s.Lock()
	defer s.Unlock()
	s.records = append(s.records, ctx)
	s.errs = append(s.errs, err)
	return nil
}

func (s *recordingSink) count() int {
	s.Lock()
	defer s.Unlock()
	return len(s.records)
}

var errUpstream = errors.New("upstream unavailable")
