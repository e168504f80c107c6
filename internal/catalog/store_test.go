package catalog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/catalog"
	"github.com/hbomb79/Curator/internal/database"
	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/labstack/gommon/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testUser     = "postgres"
	testPassword = "postgres"
	testDBName   = "CURATOR_TEST_DB"
)

var (
	ctx = context.Background()

	dbOnce    sync.Once
	dbManager database.Manager
	dbErr     error
)

// connectTestDB spawns (once per test binary) a postgres container, connects
// to it and applies the migrations.
func connectTestDB(t *testing.T) database.Manager {
	if testing.Short() {
		t.Skip("skipping catalog store integration test in short mode")
	}

	dbOnce.Do(func() {
		logger.SetMinLoggingLevel(logger.WARNING.Level())
		container, err := postgres.RunContainer(ctx,
			testcontainers.WithImage("docker.io/postgres:14.1-alpine"),
			postgres.WithDatabase(testDBName),
			postgres.WithUsername(testUser),
			postgres.WithPassword(testPassword),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			dbErr = err
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			dbErr = err
			return
		}
		port, err := container.MappedPort(ctx, "5432/tcp")
		if err != nil {
			dbErr = err
			return
		}

		manager := database.New()
		dbErr = manager.Connect(ctx, database.DatabaseConfig{
			User:            testUser,
			Password:        testPassword,
			Name:            testDBName,
			Host:            host,
			Port:            port.Port(),
			SSLMode:         "disable",
			ConnectAttempts: 3,
			Retry: database.RetryConfig{
				InitialInterval: 10 * time.Millisecond,
				MaxInterval:     50 * time.Millisecond,
				MaxElapsedTime:  200 * time.Millisecond,
			},
		})
		dbManager = manager
	})

	require.NoError(t, dbErr, "test database must be available")
	return dbManager
}

func newTestWriter(t *testing.T) *catalog.Writer {
	db := connectTestDB(t)
	return catalog.NewWriter(db, database.RetryConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
		MaxElapsedTime:  200 * time.Millisecond,
	})
}

func TestCreateGenre_IsIdempotentPerDomain(t *testing.T) {
	writer := newTestWriter(t)
	tag := random.String(12)

	first, err := writer.CreateGenre(ctx, &catalog.Genre{Domain: catalog.MovieGenre, Tag: tag})
	require.NoError(t, err)
	second, err := writer.CreateGenre(ctx, &catalog.Genre{Domain: catalog.MovieGenre, Tag: tag})
	require.NoError(t, err)
	music, err := writer.CreateGenre(ctx, &catalog.Genre{Domain: catalog.MusicGenre, Tag: tag})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same domain and tag must yield the same genre")
	assert.NotEqual(t, first.ID, music.ID, "domains are separate namespaces")
	assert.Equal(t, catalog.MusicGenre, music.Domain)
}

func TestCreateStudio_ExactNameMatching(t *testing.T) {
	writer := newTestWriter(t)
	name := "Studio " + random.String(10)

	first, err := writer.CreateStudio(ctx, &catalog.Studio{Name: name, Country: "US"})
	require.NoError(t, err)
	again, err := writer.CreateStudio(ctx, &catalog.Studio{Name: name})
	require.NoError(t, err)
	padded, err := writer.CreateStudio(ctx, &catalog.Studio{Name: name + " "})
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "US", again.Country, "existing row must be returned untouched")
	assert.NotEqual(t, first.ID, padded.ID)
}

func TestFindPersonByName(t *testing.T) {
	writer := newTestWriter(t)
	name := "Person " + random.String(10)

	missing, err := writer.FindPersonByName(ctx, name)
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := writer.CreatePerson(ctx, &catalog.Person{Name: name, KnownFor: "Acting"})
	require.NoError(t, err)

	found, err := writer.FindPersonByName(ctx, name)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Acting", found.KnownFor)
}

func TestWriteMovies_InsertIfAbsent(t *testing.T) {
	writer := newTestWriter(t)

	genre, err := writer.CreateGenre(ctx, &catalog.Genre{Domain: catalog.MovieGenre, Tag: "Genre " + random.String(8)})
	require.NoError(t, err)
	studio, err := writer.CreateStudio(ctx, &catalog.Studio{Name: "Studio " + random.String(8)})
	require.NoError(t, err)
	actor, err := writer.CreatePerson(ctx, &catalog.Person{Name: "Actor " + random.String(8)})
	require.NoError(t, err)

	path := "/media/movies/" + random.String(16) + ".mkv"
	record := func(title string) *catalog.MovieRecord {
		return &catalog.MovieRecord{
			Movie:     &catalog.Movie{Watchable: catalog.Watchable{SourcePath: path, SourceItemID: "1"}, Title: title},
			GenreIDs:  []uuid.UUID{genre.ID},
			StudioIDs: []uuid.UUID{studio.ID},
			Cast:      []*catalog.CastCredit{{PersonID: actor.ID, Character: "Neo"}},
		}
	}

	result, err := writer.WriteMovies(ctx, []*catalog.MovieRecord{record("Original")})
	require.NoError(t, err)
	assert.Equal(t, catalog.WriteResult{Created: 1}, result)

	result, err = writer.WriteMovies(ctx, []*catalog.MovieRecord{record("Changed")})
	require.NoError(t, err)
	assert.Equal(t, catalog.WriteResult{Skipped: 1}, result)

	paths, err := writer.ListMovieSourcePaths(ctx)
	require.NoError(t, err)
	assert.Contains(t, paths, path)

	var title string
	require.NoError(t, dbManager.GetSqlxDb().GetContext(ctx, &title, `SELECT title FROM movie WHERE source_path = $1`, path))
	assert.Equal(t, "Original", title, "existing movie must not be modified")

	var castCount int
	require.NoError(t, dbManager.GetSqlxDb().GetContext(ctx, &castCount, `
		SELECT COUNT(*) FROM cast_credit c JOIN movie m ON m.id = c.movie_id WHERE m.source_path = $1`, path))
	assert.Equal(t, 1, castCount, "credits must only be written for new movies")
}

func TestWriteTracks_InsertIfAbsent(t *testing.T) {
	writer := newTestWriter(t)

	artist, err := writer.CreatePerson(ctx, &catalog.Person{Name: "Artist " + random.String(8)})
	require.NoError(t, err)
	album, err := writer.CreateAlbum(ctx, &catalog.Album{Title: "Album " + random.String(8), ArtistID: artist.ID})
	require.NoError(t, err)
	sameAlbum, err := writer.CreateAlbum(ctx, &catalog.Album{Title: album.Title, ArtistID: artist.ID})
	require.NoError(t, err)
	assert.Equal(t, album.ID, sameAlbum.ID)

	mood, err := writer.CreateMood(ctx, &catalog.Mood{Tag: "Mood " + random.String(8)})
	require.NoError(t, err)

	path := "/media/music/" + random.String(16) + ".flac"
	records := []*catalog.TrackRecord{{
		Track:     &catalog.Track{Watchable: catalog.Watchable{SourcePath: path, SourceItemID: "t1"}, Title: "Song", AlbumID: album.ID},
		MoodIDs:   []uuid.UUID{mood.ID},
		ArtistIDs: []uuid.UUID{artist.ID},
	}}

	result, err := writer.WriteTracks(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	records[0].Track.ID = uuid.Nil
	result, err = writer.WriteTracks(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, catalog.WriteResult{Skipped: 1}, result)

	counts, err := writer.Counts(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts.Tracks, 1)
	assert.GreaterOrEqual(t, counts.Albums, 1)
	assert.GreaterOrEqual(t, counts.Moods, 1)
}
