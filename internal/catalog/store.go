package catalog

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/database"
)

// Store contains the SQL for every catalog entity. It holds no state; all
// methods accept the Queryable to run against so that callers can choose
// whether the work happens inside a transaction.
type Store struct{}

func (store *Store) ListGenres(ctx context.Context, db database.Queryable) ([]*Genre, error) {
	var results []*Genre
	if err := db.SelectContext(ctx, &results, `SELECT * FROM genre`); err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}

	return results, nil
}

func (store *Store) ListMoods(ctx context.Context, db database.Queryable) ([]*Mood, error) {
	var results []*Mood
	if err := db.SelectContext(ctx, &results, `SELECT * FROM mood`); err != nil {
		return nil, fmt.Errorf("failed to list moods: %w", err)
	}

	return results, nil
}

func (store *Store) ListStudios(ctx context.Context, db database.Queryable) ([]*Studio, error) {
	var results []*Studio
	if err := db.SelectContext(ctx, &results, `SELECT * FROM studio`); err != nil {
		return nil, fmt.Errorf("failed to list studios: %w", err)
	}

	return results, nil
}

// FindPersonByName returns the oldest person whose name exactly matches the
// provided name, or nil if no such person exists. No case or diacritic
// folding is performed.
func (store *Store) FindPersonByName(ctx context.Context, db database.Queryable, name string) (*Person, error) {
	var results []*Person
	if err := db.SelectContext(ctx, &results, `SELECT * FROM person WHERE name = $1 ORDER BY created_at, id LIMIT 1`, name); err != nil {
		return nil, fmt.Errorf("failed to find person %q: %w", name, err)
	}

	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (store *Store) ListMovieSourcePaths(ctx context.Context, db database.Queryable) ([]string, error) {
	var results []string
	if err := db.SelectContext(ctx, &results, `SELECT source_path FROM movie`); err != nil {
		return nil, fmt.Errorf("failed to list movie source paths: %w", err)
	}

	return results, nil
}

func (store *Store) ListTrackSourcePaths(ctx context.Context, db database.Queryable) ([]string, error) {
	var results []string
	if err := db.SelectContext(ctx, &results, `SELECT source_path FROM track`); err != nil {
		return nil, fmt.Errorf("failed to list track source paths: %w", err)
	}

	return results, nil
}

// CreateGenre inserts the genre, ignoring the insert if the (domain, tag) pair
// already exists. The returned genre is always the persisted row, which
// may carry a different ID to the one provided.
func (store *Store) CreateGenre(ctx context.Context, db database.Queryable, genre *Genre) (*Genre, error) {
	if _, err := db.NamedExecContext(ctx, `
		INSERT INTO genre(id, domain, tag) VALUES (:id, :domain, :tag)
		ON CONFLICT(domain, tag) DO NOTHING`, genre,
	); err != nil {
		return nil, fmt.Errorf("failed to insert genre %q: %w", genre.Tag, err)
	}

	var result Genre
	if err := db.GetContext(ctx, &result, `SELECT * FROM genre WHERE domain = $1 AND tag = $2`, genre.Domain, genre.Tag); err != nil {
		return nil, fmt.Errorf("failed to select saved genre %q: %w", genre.Tag, err)
	}

	return &result, nil
}

// CreateMood inserts the mood, ignoring the insert if the tag already exists.
func (store *Store) CreateMood(ctx context.Context, db database.Queryable, mood *Mood) (*Mood, error) {
	if _, err := db.NamedExecContext(ctx, `
		INSERT INTO mood(id, tag) VALUES (:id, :tag)
		ON CONFLICT(tag) DO NOTHING`, mood,
	); err != nil {
		return nil, fmt.Errorf("failed to insert mood %q: %w", mood.Tag, err)
	}

	var result Mood
	if err := db.GetContext(ctx, &result, `SELECT * FROM mood WHERE tag = $1`, mood.Tag); err != nil {
		return nil, fmt.Errorf("failed to select saved mood %q: %w", mood.Tag, err)
	}

	return &result, nil
}

// CreateStudio inserts the studio, ignoring the insert if the name already exists.
func (store *Store) CreateStudio(ctx context.Context, db database.Queryable, studio *Studio) (*Studio, error) {
	if _, err := db.NamedExecContext(ctx, `
		INSERT INTO studio(id, name, country, logo_url) VALUES (:id, :name, :country, :logo_url)
		ON CONFLICT(name) DO NOTHING`, studio,
	); err != nil {
		return nil, fmt.Errorf("failed to insert studio %q: %w", studio.Name, err)
	}

	var result Studio
	if err := db.GetContext(ctx, &result, `SELECT * FROM studio WHERE name = $1`, studio.Name); err != nil {
		return nil, fmt.Errorf("failed to select saved studio %q: %w", studio.Name, err)
	}

	return &result, nil
}

// CreatePerson unconditionally inserts a new person row. Callers are
// responsible for checking whether the person already exists.
func (store *Store) CreatePerson(ctx context.Context, db database.Queryable, person *Person) (*Person, error) {
	var result Person
	query, args, err := db.BindNamed(`
		INSERT INTO person(id, name, original_name, known_for, image_url)
		VALUES (:id, :name, :original_name, :known_for, :image_url)
		RETURNING *`, person)
	if err != nil {
		return nil, fmt.Errorf("failed to bind person insert: %w", err)
	}

	if err := db.GetContext(ctx, &result, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert person %q: %w", person.Name, err)
	}

	return &result, nil
}

// CreateAlbum inserts the album, ignoring the insert if the (title, artist) pair
// already exists.
func (store *Store) CreateAlbum(ctx context.Context, db database.Queryable, album *Album) (*Album, error) {
	if _, err := db.NamedExecContext(ctx, `
		INSERT INTO album(id, title, artist_id, year, summary) VALUES (:id, :title, :artist_id, :year, :summary)
		ON CONFLICT(title, artist_id) DO NOTHING`, album,
	); err != nil {
		return nil, fmt.Errorf("failed to insert album %q: %w", album.Title, err)
	}

	var result Album
	if err := db.GetContext(ctx, &result, `SELECT * FROM album WHERE title = $1 AND artist_id = $2`, album.Title, album.ArtistID); err != nil {
		return nil, fmt.Errorf("failed to select saved album %q: %w", album.Title, err)
	}

	return &result, nil
}

// InsertMovie inserts the movie IF no movie with the same source path exists. When
// the movie is new, its genre/studio associations and credits are inserted too. An
// existing movie is left untouched (including its relations) and false is returned.
func (store *Store) InsertMovie(ctx context.Context, db database.Queryable, record *MovieRecord) (bool, error) {
	movie := record.Movie
	inserted, err := insertIfAbsent(ctx, db, `
		INSERT INTO movie(
			id, title, source_path, source_item_id, tmdb_id, imdb_id, runtime, container, width, height,
			resolution, summary, tagline, release_date, budget, revenue, poster_url, backdrop_url
		) VALUES (
			:id, :title, :source_path, :source_item_id, :tmdb_id, :imdb_id, :runtime, :container, :width, :height,
			:resolution, :summary, :tagline, :release_date, :budget, :revenue, :poster_url, :backdrop_url
		)
		ON CONFLICT(source_path) DO NOTHING
		RETURNING id`, movie)
	if err != nil || !inserted {
		return false, err
	}

	if err := store.saveAssociations(ctx, db, "movie_genres", "movie_id", "genre_id", movie.ID, record.GenreIDs); err != nil {
		return false, err
	}
	if err := store.saveAssociations(ctx, db, "movie_studios", "movie_id", "studio_id", movie.ID, record.StudioIDs); err != nil {
		return false, err
	}

	for _, credit := range record.Cast {
		credit.MovieID = movie.ID
	}
	for _, credit := range record.Crew {
		credit.MovieID = movie.ID
	}

	if len(record.Cast) > 0 {
		if _, err := db.NamedExecContext(ctx, `
			INSERT INTO cast_credit(id, movie_id, person_id, character, ordering)
			VALUES (:id, :movie_id, :person_id, :character, :ordering)`, record.Cast,
		); err != nil {
			return false, fmt.Errorf("failed to insert cast for movie %s: %w", movie, err)
		}
	}
	if len(record.Crew) > 0 {
		if _, err := db.NamedExecContext(ctx, `
			INSERT INTO crew_credit(id, movie_id, person_id, job, department)
			VALUES (:id, :movie_id, :person_id, :job, :department)`, record.Crew,
		); err != nil {
			return false, fmt.Errorf("failed to insert crew for movie %s: %w", movie, err)
		}
	}

	return true, nil
}

// InsertTrack inserts the track IF no track with the same source path exists, along
// with its genre, mood and artist associations.
func (store *Store) InsertTrack(ctx context.Context, db database.Queryable, record *TrackRecord) (bool, error) {
	track := record.Track
	inserted, err := insertIfAbsent(ctx, db, `
		INSERT INTO track(
			id, title, album_id, source_path, source_item_id, duration, container, bitrate, track_number, disc_number
		) VALUES (
			:id, :title, :album_id, :source_path, :source_item_id, :duration, :container, :bitrate, :track_number, :disc_number
		)
		ON CONFLICT(source_path) DO NOTHING
		RETURNING id`, track)
	if err != nil || !inserted {
		return false, err
	}

	if err := store.saveAssociations(ctx, db, "track_genres", "track_id", "genre_id", track.ID, record.GenreIDs); err != nil {
		return false, err
	}
	if err := store.saveAssociations(ctx, db, "track_moods", "track_id", "mood_id", track.ID, record.MoodIDs); err != nil {
		return false, err
	}

	if len(record.ArtistIDs) > 0 {
		type artistAssoc struct {
			TrackID  uuid.UUID `db:"track_id"`
			PersonID uuid.UUID `db:"person_id"`
			Ordering int       `db:"ordering"`
		}
		assocs := make([]artistAssoc, len(record.ArtistIDs))
		for k, v := range record.ArtistIDs {
			assocs[k] = artistAssoc{track.ID, v, k}
		}

		if _, err := db.NamedExecContext(ctx, `
			INSERT INTO track_artists(track_id, person_id, ordering)
			VALUES (:track_id, :person_id, :ordering)
			ON CONFLICT(track_id, person_id) DO NOTHING`, assocs,
		); err != nil {
			return false, fmt.Errorf("failed to insert artists for track %s: %w", track, err)
		}
	}

	return true, nil
}

// saveAssociations bulk inserts rows in to a two-column join table. Duplicate
// pairs are ignored.
func (store *Store) saveAssociations(ctx context.Context, db database.Queryable, table, ownerColumn, relatedColumn string, ownerID uuid.UUID, related []uuid.UUID) error {
	if len(related) == 0 {
		return nil
	}

	type assoc struct {
		OwnerID   uuid.UUID `db:"owner_id"`
		RelatedID uuid.UUID `db:"related_id"`
	}
	assocs := make([]assoc, len(related))
	for k, v := range related {
		assocs[k] = assoc{ownerID, v}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s(%s, %s) VALUES (:owner_id, :related_id)
		ON CONFLICT(%s, %s) DO NOTHING`, table, ownerColumn, relatedColumn, ownerColumn, relatedColumn)
	if _, err := db.NamedExecContext(ctx, query, assocs); err != nil {
		return fmt.Errorf("failed to insert %s associations: %w", table, err)
	}

	return nil
}

// insertIfAbsent runs the named insert (which must contain an ON CONFLICT DO NOTHING
// RETURNING clause) and reports whether a row was actually inserted.
func insertIfAbsent(ctx context.Context, db database.Queryable, query string, arg any) (bool, error) {
	bound, args, err := db.BindNamed(query, arg)
	if err != nil {
		return false, fmt.Errorf("failed to bind insert: %w", err)
	}

	rows, err := db.QueryxContext(ctx, bound, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	inserted := rows.Next()
	if err := rows.Err(); err != nil {
		return false, err
	}

	return inserted, nil
}

// Counts returns the number of rows held in each of the catalog tables.
func (store *Store) Counts(ctx context.Context, db database.Queryable) (*Counts, error) {
	var counts Counts
	tables := []struct {
		name string
		dest *int
	}{
		{"movie", &counts.Movies},
		{"track", &counts.Tracks},
		{"album", &counts.Albums},
		{"genre", &counts.Genres},
		{"mood", &counts.Moods},
		{"studio", &counts.Studios},
		{"person", &counts.People},
		{"cast_credit", &counts.Cast},
		{"crew_credit", &counts.Crew},
	}

	for _, table := range tables {
		query, args, err := squirrel.Select("COUNT(*)").From(table.name).PlaceholderFormat(squirrel.Dollar).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build count query for %s: %w", table.name, err)
		}

		if err := db.GetContext(ctx, table.dest, query, args...); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table.name, err)
		}
	}

	return &counts, nil
}

// GenresForDomain returns the genres of a single domain, ordered by tag.
func (store *Store) GenresForDomain(ctx context.Context, db database.Queryable, domain GenreDomain) ([]*Genre, error) {
	query, args, err := squirrel.Select("*").
		From("genre").
		Where(squirrel.Eq{"domain": domain}).
		OrderBy("tag").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build genre query: %w", err)
	}

	var results []*Genre
	if err := db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s genres: %w", domain, err)
	}

	return results, nil
}
