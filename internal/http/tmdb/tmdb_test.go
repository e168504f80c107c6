package tmdb_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hbomb79/Curator/internal/http/tmdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "test-key"

func newServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiKey, r.URL.Query().Get("api_key"))
		switch r.URL.Path {
		case "/movie/603":
			fmt.Fprint(w, `{
				"id": 603, "imdb_id": "tt0133093", "title": "The Matrix", "tagline": "Welcome to the Real World.",
				"overview": "Set in the 22nd century.", "release_date": "1999-03-30", "runtime": 136,
				"budget": 63000000, "revenue": 463517383, "poster_path": "/p.jpg", "backdrop_path": "",
				"genres": [{"id": 28, "name": "Action"}, {"id": 878, "name": "Science Fiction"}],
				"production_companies": [{"id": 79, "name": "Village Roadshow Pictures", "origin_country": "US", "logo_path": "/l.png"}]
			}`)
		case "/movie/603/credits":
			fmt.Fprint(w, `{
				"id": 603,
				"cast": [{"id": 6384, "name": "Keanu Reeves", "original_name": "Keanu Reeves", "character": "Neo", "order": 0, "known_for_department": "Acting", "profile_path": "/k.jpg"}],
				"crew": [{"id": 9339, "name": "Lana Wachowski", "job": "Director", "department": "Directing"}]
			}`)
		case "/movie/1":
			fmt.Fprint(w, `{"id": 1, "title": "Undated", "release_date": ""}`)
		case "/movie/500":
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"status_code": 11, "status_message": "Internal error"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"status_code": 34, "status_message": "The resource you requested could not be found."}`)
		}
	}))
}

func newClient(url string) interface {
	GetMovie(context.Context, string) (*tmdb.Movie, error)
	GetCredits(context.Context, string) (*tmdb.Credits, error)
	ImageURL(string, string) string
	PosterURL(string) string
} {
	return tmdb.NewClient(tmdb.Config{
		ApiKey:            apiKey,
		BaseURL:           url + "/",
		ImageBaseURL:      "https://image.tmdb.org/t/p/",
		PosterSize:        "w500",
		RequestsPerSecond: 1000,
		Burst:             10,
		Timeout:           time.Second,
	}, nil)
}

func TestGetMovie(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	movie, err := newClient(server.URL).GetMovie(context.Background(), "603")
	require.NoError(t, err)

	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, 136, movie.Runtime)
	require.True(t, movie.ReleaseDate.Valid())
	assert.Equal(t, 1999, movie.ReleaseDate.Year())
	require.Len(t, movie.Genres, 2)
	assert.Equal(t, "Science Fiction", movie.Genres[1].Name)
	require.Len(t, movie.ProductionCompanies, 1)
	assert.Equal(t, "US", movie.ProductionCompanies[0].OriginCountry)
}

func TestGetMovie_EmptyReleaseDate(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	movie, err := newClient(server.URL).GetMovie(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, movie.ReleaseDate.Valid())
}

func TestGetCredits(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	credits, err := newClient(server.URL).GetCredits(context.Background(), "603")
	require.NoError(t, err)

	require.Len(t, credits.Cast, 1)
	assert.Equal(t, "Neo", credits.Cast[0].Character)
	require.Len(t, credits.Crew, 1)
	assert.Equal(t, "Directing", credits.Crew[0].Department)
}

func TestGetMovie_NotFound(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	_, err := newClient(server.URL).GetMovie(context.Background(), "999999")
	require.Error(t, err)
	assert.ErrorIs(t, err, tmdb.ErrNotFound)

	var failed *tmdb.FailedRequestError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, http.StatusNotFound, failed.StatusCode())
}

func TestGetMovie_ServerErrorIsTransient(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	_, err := newClient(server.URL).GetMovie(context.Background(), "500")
	assert.ErrorIs(t, err, tmdb.ErrTransient)
	assert.NotErrorIs(t, err, tmdb.ErrNotFound)
}

func TestImageURL(t *testing.T) {
	client := newClient("http://unused")

	assert.Equal(t, "https://image.tmdb.org/t/p/w500/p.jpg", client.ImageURL("w500", "/p.jpg"))
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/p.jpg", client.PosterURL("/p.jpg"))
	assert.Empty(t, client.ImageURL("w500", ""))
}
