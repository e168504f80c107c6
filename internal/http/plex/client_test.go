package plex_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hbomb79/Curator/internal/http/plex"
	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const token = "plex-token"

const movieDetail = `{
  "MediaContainer": {
    "size": 1,
    "Metadata": [{
      "ratingKey": "42",
      "type": "movie",
      "title": "The Matrix",
      "summary": "A hacker learns the truth.",
      "year": 1999,
      "duration": 8160000,
      "Guid": [{"id": "imdb://tt0133093"}, {"id": "tmdb://603"}],
      "Genre": [{"tag": "Action"}, {"tag": "Science Fiction"}],
      "Media": [{
        "duration": 8160000,
        "bitrate": 9000,
        "width": 1920,
        "height": 1080,
        "container": "mkv",
        "videoResolution": "1080",
        "Part": [{"file": "/media/movies/The Matrix (1999).mkv", "container": "mkv"}]
      }]
    }]
  }
}`

const trackDetail = `{
  "MediaContainer": {
    "Metadata": [{
      "ratingKey": "900",
      "type": "track",
      "title": "Song",
      "index": 3,
      "parentIndex": 1,
      "parentTitle": "Album",
      "parentYear": 2001,
      "grandparentTitle": "Band",
      "Mood": [{"tag": "Calm"}],
      "Media": [{"duration": 200000, "bitrate": 320, "container": "mp3", "Part": [{"file": "/media/music/song.mp3"}]}]
    }]
  }
}`

func newServer(t *testing.T, total int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch r.URL.Path {
		case "/library/sections/1/all":
			start, _ := strconv.Atoi(r.Header.Get("X-Plex-Container-Start"))
			size, _ := strconv.Atoi(r.Header.Get("X-Plex-Container-Size"))
			var metadata string
			for i := start; i < start+size && i < total; i++ {
				if metadata != "" {
					metadata += ","
				}
				metadata += fmt.Sprintf(`{"ratingKey": "%d", "title": "Item %d"}`, i, i)
			}
			fmt.Fprintf(w, `{"MediaContainer": {"totalSize": %d, "Metadata": [%s]}}`, total, metadata)
		case "/library/metadata/42":
			fmt.Fprint(w, movieDetail)
		case "/library/metadata/900":
			fmt.Fprint(w, trackDetail)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newClient(url string) inventory.Client {
	return plex.New(inventory.Config{URL: url + "/", Token: token, PageSize: 2, Timeout: time.Second}, nil)
}

func TestListItems_PagesThroughLibrary(t *testing.T) {
	server := newServer(t, 5)
	defer server.Close()

	var ids []string
	for item, err := range newClient(server.URL).ListItems(context.Background(), "1", inventory.KindMovie) {
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, ids)
}

func TestListItems_UnknownLibraryYieldsError(t *testing.T) {
	server := newServer(t, 5)
	defer server.Close()

	var errs []error
	for _, err := range newClient(server.URL).ListItems(context.Background(), "99", inventory.KindMovie) {
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], inventory.ErrNotFound)
}

func TestGetItemDetail_Movie(t *testing.T) {
	server := newServer(t, 0)
	defer server.Close()

	detail, err := newClient(server.URL).GetItemDetail(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, "The Matrix", detail.Title)
	assert.Equal(t, "/media/movies/The Matrix (1999).mkv", detail.Path)
	assert.Equal(t, []string{"Action", "Science Fiction"}, detail.Genres)
	assert.Equal(t, int64(8160000), detail.Media.DurationMillis)
	assert.Equal(t, "1080", detail.Media.Resolution)
	assert.Equal(t, 1920, detail.Media.Width)
	require.NotNil(t, detail.ProviderIDs.Tmdb)
	assert.Equal(t, "603", *detail.ProviderIDs.Tmdb)
	require.NotNil(t, detail.ProviderIDs.Imdb)
	assert.Equal(t, "tt0133093", *detail.ProviderIDs.Imdb)
}

func TestGetItemDetail_Track(t *testing.T) {
	server := newServer(t, 0)
	defer server.Close()

	detail, err := newClient(server.URL).GetItemDetail(context.Background(), "900")
	require.NoError(t, err)

	assert.Equal(t, "Album", detail.Album)
	assert.Equal(t, "Band", detail.AlbumArtist)
	assert.Equal(t, []string{"Band"}, detail.Artists)
	assert.Equal(t, []string{"Calm"}, detail.Moods)
	assert.Empty(t, detail.Genres)
	assert.Equal(t, 3, detail.TrackNumber)
	assert.Equal(t, 1, detail.DiscNumber)
	assert.Nil(t, detail.ProviderIDs.Tmdb)
}

func TestGetItemDetail_Missing(t *testing.T) {
	server := newServer(t, 0)
	defer server.Close()

	_, err := newClient(server.URL).GetItemDetail(context.Background(), "7")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}
