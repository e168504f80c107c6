// Package inventory defines the contract shared by the remote media servers
// which Curator is able to mirror.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

type Kind string

const (
	KindMovie Kind = "movie"
	KindMusic Kind = "music"

	tmdbPrefix = "tmdb://"
	imdbPrefix = "imdb://"
)

var (
	ErrTransient = errors.New("transient inventory failure")
	ErrNotFound  = errors.New("inventory item not found")
)

type (
	// Client is implemented by each supported media server.
	Client interface {
		// ListItems returns a lazy, finite sequence of the items in the given library.
		// Pages are fetched on demand as the sequence is consumed; a failure to fetch a
		// page is yielded as an error, after which the sequence ends. The sequence is
		// not restartable.
		ListItems(ctx context.Context, libraryID string, kind Kind) iter.Seq2[Item, error]

		// GetItemDetail fetches the full record for a single item.
		GetItemDetail(ctx context.Context, itemID string) (*ItemDetail, error)
	}

	// Item is the stub returned when listing a library.
	Item struct {
		ID    string
		Title string
	}

	MediaInfo struct {
		DurationMillis int64
		Container      string
		Width          int
		Height         int
		Resolution     string
		Bitrate        int
	}

	ProviderIDs struct {
		Tmdb *string
		Imdb *string
	}

	ItemDetail struct {
		ID          string
		Title       string
		Path        string
		Summary     string
		Year        int
		Media       MediaInfo
		Genres      []string
		Moods       []string
		ProviderIDs ProviderIDs

		// Music-only fields
		Album       string
		AlbumYear   int
		AlbumArtist string
		Artists     []string
		TrackNumber int
		DiscNumber  int
	}

	Config struct {
		Kind     string        `yaml:"kind" env:"INVENTORY_KIND" env-default:"plex" validate:"oneof=plex jellyfin"`
		URL      string        `yaml:"url" env:"INVENTORY_URL" env-required:"true" validate:"url"`
		Token    string        `yaml:"token" env:"INVENTORY_TOKEN" env-required:"true"`
		PageSize int           `yaml:"page_size" env:"INVENTORY_PAGE_SIZE" env-default:"100" validate:"min=1"`
		Timeout  time.Duration `yaml:"timeout" env:"INVENTORY_TIMEOUT" env-default:"30s"`
	}

	// PageFetcher fetches a single page of items starting at the provided offset,
	// returning the items and the total number of items in the library.
	PageFetcher func(ctx context.Context, start int, size int) ([]Item, int, error)
)

func (kind Kind) Valid() bool { return kind == KindMovie || kind == KindMusic }

// ParseProviderIDs extracts the external identifiers from a list of
// provider guids such as "tmdb://603" and "imdb://tt0133093". Unknown or
// malformed entries are ignored; the first matching entry of each
// provider wins.
func ParseProviderIDs(guids []string) ProviderIDs {
	var ids ProviderIDs
	for _, guid := range guids {
		switch {
		case ids.Tmdb == nil && strings.HasPrefix(guid, tmdbPrefix):
			if v := strings.TrimPrefix(guid, tmdbPrefix); v != "" {
				ids.Tmdb = &v
			}
		case ids.Imdb == nil && strings.HasPrefix(guid, imdbPrefix):
			if v := strings.TrimPrefix(guid, imdbPrefix); v != "" {
				ids.Imdb = &v
			}
		}
	}

	return ids
}

// ProviderGuids formats the provider identifiers in their guid list form.
func ProviderGuids(tmdb string, imdb string) []string {
	guids := make([]string, 0, 2)
	if tmdb = strings.TrimSpace(tmdb); tmdb != "" {
		guids = append(guids, tmdbPrefix+tmdb)
	}
	if imdb = strings.TrimSpace(imdb); imdb != "" {
		guids = append(guids, imdbPrefix+imdb)
	}

	return guids
}

// Paginate adapts a PageFetcher in to a lazy sequence of items. Fetching stops
// once the total reported by the server has been reached, an empty page is
// returned, or the consumer stops iterating.
func Paginate(ctx context.Context, pageSize int, fetch PageFetcher) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		start := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(Item{}, err)
				return
			}

			items, total, err := fetch(ctx, start, pageSize)
			if err != nil {
				yield(Item{}, fmt.Errorf("failed to fetch page at offset %d: %w", start, err))
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			start += len(items)
			if len(items) == 0 || start >= total {
				return
			}
		}
	}
}

// Wrap tags the error with the provided marker so that callers can
// classify it using errors.Is.
func Wrap(marker error, operation string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, operation, err)
	}

	return fmt.Errorf("%w: %s", marker, operation)
}

// StatusError maps a non-2xx HTTP status to a tagged error.
func StatusError(operation string, status int) error {
	if status == 404 {
		return Wrap(ErrNotFound, operation, nil)
	}

	return Wrap(ErrTransient, fmt.Sprintf("%s: unexpected status %d", operation, status), nil)
}
