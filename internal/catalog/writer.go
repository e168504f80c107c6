package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/database"
	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/jmoiron/sqlx"
)

var log = logger.Get("Catalog")

// Writer is the only component permitted to write to the catalog. Every
// write is retried using exponential backoff; a write which exhausts its
// retries returns an error which callers should treat as fatal.
type Writer struct {
	db    database.Manager
	store *Store
	retry database.RetryConfig
}

func NewWriter(db database.Manager, retry database.RetryConfig) *Writer {
	return &Writer{db: db, store: &Store{}, retry: retry}
}

func (writer *Writer) ListGenres(ctx context.Context) ([]*Genre, error) {
	return writer.store.ListGenres(ctx, writer.db.GetSqlxDb())
}

func (writer *Writer) ListMoods(ctx context.Context) ([]*Mood, error) {
	return writer.store.ListMoods(ctx, writer.db.GetSqlxDb())
}

func (writer *Writer) ListStudios(ctx context.Context) ([]*Studio, error) {
	return writer.store.ListStudios(ctx, writer.db.GetSqlxDb())
}

func (writer *Writer) FindPersonByName(ctx context.Context, name string) (*Person, error) {
	return writer.store.FindPersonByName(ctx, writer.db.GetSqlxDb(), name)
}

// ListMovieSourcePaths returns the natural keys of every movie
// already held in the catalog.
func (writer *Writer) ListMovieSourcePaths(ctx context.Context) ([]string, error) {
	return writer.store.ListMovieSourcePaths(ctx, writer.db.GetSqlxDb())
}

func (writer *Writer) ListTrackSourcePaths(ctx context.Context) ([]string, error) {
	return writer.store.ListTrackSourcePaths(ctx, writer.db.GetSqlxDb())
}

func (writer *Writer) Counts(ctx context.Context) (*Counts, error) {
	return writer.store.Counts(ctx, writer.db.GetSqlxDb())
}

func (writer *Writer) GenresForDomain(ctx context.Context, domain GenreDomain) ([]*Genre, error) {
	return writer.store.GenresForDomain(ctx, writer.db.GetSqlxDb(), domain)
}

func (writer *Writer) CreateGenre(ctx context.Context, genre *Genre) (*Genre, error) {
	if genre.ID == uuid.Nil {
		genre.ID = uuid.New()
	}

	var result *Genre
	err := writer.withRetry(ctx, "create genre "+genre.Tag, func(db database.Queryable) (err error) {
		result, err = writer.store.CreateGenre(ctx, db, genre)
		return err
	})

	return result, err
}

func (writer *Writer) CreateMood(ctx context.Context, mood *Mood) (*Mood, error) {
	if mood.ID == uuid.Nil {
		mood.ID = uuid.New()
	}

	var result *Mood
	err := writer.withRetry(ctx, "create mood "+mood.Tag, func(db database.Queryable) (err error) {
		result, err = writer.store.CreateMood(ctx, db, mood)
		return err
	})

	return result, err
}

func (writer *Writer) CreateStudio(ctx context.Context, studio *Studio) (*Studio, error) {
	if studio.ID == uuid.Nil {
		studio.ID = uuid.New()
	}

	var result *Studio
	err := writer.withRetry(ctx, "create studio "+studio.Name, func(db database.Queryable) (err error) {
		result, err = writer.store.CreateStudio(ctx, db, studio)
		return err
	})

	return result, err
}

func (writer *Writer) CreatePerson(ctx context.Context, person *Person) (*Person, error) {
	if person.ID == uuid.Nil {
		person.ID = uuid.New()
	}

	var result *Person
	err := writer.withRetry(ctx, "create person "+person.Name, func(db database.Queryable) (err error) {
		result, err = writer.store.CreatePerson(ctx, db, person)
		return err
	})

	return result, err
}

func (writer *Writer) CreateAlbum(ctx context.Context, album *Album) (*Album, error) {
	if album.ID == uuid.Nil {
		album.ID = uuid.New()
	}

	var result *Album
	err := writer.withRetry(ctx, "create album "+album.Title, func(db database.Queryable) (err error) {
		result, err = writer.store.CreateAlbum(ctx, db, album)
		return err
	})

	return result, err
}

// WriteMovies persists the batch of movie records inside a single transaction. Movies
// whose source path is already present in the catalog are skipped, and their
// existing relations are left untouched.
func (writer *Writer) WriteMovies(ctx context.Context, records []*MovieRecord) (WriteResult, error) {
	var result WriteResult
	err := writer.withRetry(ctx, fmt.Sprintf("write %d movies", len(records)), func(db database.Queryable) error {
		result = WriteResult{}
		for _, record := range records {
			assignMovieIDs(record)
			created, err := writer.store.InsertMovie(ctx, db, record)
			if err != nil {
				return err
			}

			if created {
				result.Created++
			} else {
				log.Debugf("Movie %s already exists in catalog, skipping\n", record.Movie)
				result.Skipped++
			}
		}

		return nil
	})

	return result, err
}

// WriteTracks persists the batch of track records inside a single transaction. Tracks
// whose source path is already present are skipped.
func (writer *Writer) WriteTracks(ctx context.Context, records []*TrackRecord) (WriteResult, error) {
	var result WriteResult
	err := writer.withRetry(ctx, fmt.Sprintf("write %d tracks", len(records)), func(db database.Queryable) error {
		result = WriteResult{}
		for _, record := range records {
			if record.Track.ID == uuid.Nil {
				record.Track.ID = uuid.New()
			}

			created, err := writer.store.InsertTrack(ctx, db, record)
			if err != nil {
				return err
			}

			if created {
				result.Created++
			} else {
				log.Debugf("Track %s already exists in catalog, skipping\n", record.Track)
				result.Skipped++
			}
		}

		return nil
	})

	return result, err
}

// withRetry runs the operation inside of a transaction, retrying the
// entire transaction if it fails.
func (writer *Writer) withRetry(ctx context.Context, label string, op func(database.Queryable) error) error {
	return database.Retry(ctx, writer.retry, label, func() error {
		return writer.db.WrapTx(ctx, func(tx *sqlx.Tx) error { return op(tx) })
	})
}

func assignMovieIDs(record *MovieRecord) {
	if record.Movie.ID == uuid.Nil {
		record.Movie.ID = uuid.New()
	}
	for _, c := range record.Cast {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
	for _, c := range record.Crew {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
}
