package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type (
	// GenreDomain partitions genres in to separate namespaces. A movie genre
	// and a music genre with an identical tag are distinct entities.
	GenreDomain string

	Genre struct {
		ID     uuid.UUID   `db:"id"`
		Domain GenreDomain `db:"domain"`
		Tag    string      `db:"tag"`
	}

	// Mood is a music-only descriptor which behaves like a Genre
	// but lives in its own namespace.
	Mood struct {
		ID  uuid.UUID `db:"id"`
		Tag string    `db:"tag"`
	}

	Studio struct {
		ID      uuid.UUID `db:"id"`
		Name    string    `db:"name"`
		Country string    `db:"country"`
		LogoURL string    `db:"logo_url"`
	}

	// Person represents an actor, crew member or musician.
	Person struct {
		ID           uuid.UUID `db:"id"`
		Name         string    `db:"name"`
		OriginalName string    `db:"original_name"`
		KnownFor     string    `db:"known_for"`
		ImageURL     string    `db:"image_url"`
		CreatedAt    time.Time `db:"created_at"`
	}

	Album struct {
		ID       uuid.UUID `db:"id"`
		Title    string    `db:"title"`
		ArtistID uuid.UUID `db:"artist_id"`
		Year     int       `db:"year"`
		Summary  string    `db:"summary"`
	}

	// Watchable contains the technical facts about a media file
	// as reported by the inventory source.
	Watchable struct {
		SourcePath   string `db:"source_path"`
		SourceItemID string `db:"source_item_id"`
		Container    string `db:"container"`
	}

	Movie struct {
		Watchable
		ID            uuid.UUID  `db:"id"`
		Title         string     `db:"title"`
		TmdbID        *string    `db:"tmdb_id"`
		ImdbID        *string    `db:"imdb_id"`
		RuntimeMillis int64      `db:"runtime"`
		Width         int        `db:"width"`
		Height        int        `db:"height"`
		Resolution    string     `db:"resolution"`
		Summary       string     `db:"summary"`
		Tagline       string     `db:"tagline"`
		ReleaseDate   *time.Time `db:"release_date"`
		Budget        int64      `db:"budget"`
		Revenue       int64      `db:"revenue"`
		PosterURL     string     `db:"poster_url"`
		BackdropURL   string     `db:"backdrop_url"`
	}

	CastCredit struct {
		ID        uuid.UUID `db:"id"`
		MovieID   uuid.UUID `db:"movie_id"`
		PersonID  uuid.UUID `db:"person_id"`
		Character string    `db:"character"`
		Ordering  int       `db:"ordering"`
	}

	CrewCredit struct {
		ID         uuid.UUID `db:"id"`
		MovieID    uuid.UUID `db:"movie_id"`
		PersonID   uuid.UUID `db:"person_id"`
		Job        string    `db:"job"`
		Department string    `db:"department"`
	}

	Track struct {
		Watchable
		ID             uuid.UUID `db:"id"`
		Title          string    `db:"title"`
		AlbumID        uuid.UUID `db:"album_id"`
		DurationMillis int64     `db:"duration"`
		Bitrate        int       `db:"bitrate"`
		TrackNumber    int       `db:"track_number"`
		DiscNumber     int       `db:"disc_number"`
	}

	// MovieRecord is a fully assembled movie, with all of its relations
	// already resolved to entity identifiers, ready to be written.
	MovieRecord struct {
		Movie     *Movie
		GenreIDs  []uuid.UUID
		StudioIDs []uuid.UUID
		Cast      []*CastCredit
		Crew      []*CrewCredit
	}

	// TrackRecord is a fully assembled track. ArtistIDs is ordered, with
	// the first entry being the primary artist.
	TrackRecord struct {
		Track     *Track
		GenreIDs  []uuid.UUID
		MoodIDs   []uuid.UUID
		ArtistIDs []uuid.UUID
	}

	// WriteResult reports the outcome of a bulk write. Items which already
	// existed (by natural key) are counted as skipped.
	WriteResult struct {
		Created int
		Skipped int
	}

	// Counts is a snapshot of the number of rows held for each catalog entity.
	Counts struct {
		Movies  int `json:"movies"`
		Tracks  int `json:"tracks"`
		Albums  int `json:"albums"`
		Genres  int `json:"genres"`
		Moods   int `json:"moods"`
		Studios int `json:"studios"`
		People  int `json:"people"`
		Cast    int `json:"cast_credits"`
		Crew    int `json:"crew_credits"`
	}
)

const (
	MovieGenre GenreDomain = "movie"
	MusicGenre GenreDomain = "music"

	// UnknownTag is the shared sentinel used when an item has no genre
	// (or mood) information at all.
	UnknownTag = "Unknown"
)

func (r WriteResult) Add(other WriteResult) WriteResult {
	return WriteResult{Created: r.Created + other.Created, Skipped: r.Skipped + other.Skipped}
}

func (m *Movie) String() string {
	return fmt.Sprintf("{movie title=%s | id=%s | path=%s}", m.Title, m.ID, m.SourcePath)
}

func (t *Track) String() string {
	return fmt.Sprintf("{track title=%s | id=%s | path=%s}", t.Title, t.ID, t.SourcePath)
}
