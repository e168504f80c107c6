// Package jellyfin implements an inventory client for the Jellyfin (and Emby) API.
package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/mitchellh/mapstructure"
)

const (
	tokenHeader = "X-Emby-Token"
	fields      = "Path,Genres,Tags,Overview,ProviderIds,MediaSources,MediaStreams"

	// RunTimeTicks are measured in units of 100ns.
	ticksPerMilli = 10_000
)

var log = logger.Get("Jellyfin")

type (
	// HTTPDoer describes the HTTP client used by the Jellyfin client.
	HTTPDoer interface {
		Do(req *http.Request) (*http.Response, error)
	}

	client struct {
		baseURL  string
		token    string
		pageSize int
		http     HTTPDoer
	}

	itemsResponse struct {
		Items            []item `json:"Items"`
		TotalRecordCount int    `json:"TotalRecordCount"`
	}

	mediaSource struct {
		Path      string `json:"Path"`
		Container string `json:"Container"`
		Bitrate   int    `json:"Bitrate"`
	}

	mediaStream struct {
		Type   string `json:"Type"`
		Width  int    `json:"Width"`
		Height int    `json:"Height"`
	}

	// providerIDs is decoded from the free-form ProviderIds map, the keys of
	// which vary in case between server versions.
	providerIDs struct {
		Tmdb string `mapstructure:"tmdb"`
		Imdb string `mapstructure:"imdb"`
	}

	item struct {
		ID                string         `json:"Id"`
		Name              string         `json:"Name"`
		Type              string         `json:"Type"`
		Path              string         `json:"Path"`
		Overview          string         `json:"Overview"`
		ProductionYear    int            `json:"ProductionYear"`
		RunTimeTicks      int64          `json:"RunTimeTicks"`
		Container         string         `json:"Container"`
		Genres            []string       `json:"Genres"`
		Tags              []string       `json:"Tags"`
		ProviderIds       map[string]any `json:"ProviderIds"`
		Album             string         `json:"Album"`
		AlbumArtist       string         `json:"AlbumArtist"`
		Artists           []string       `json:"Artists"`
		IndexNumber       int            `json:"IndexNumber"`
		ParentIndexNumber int            `json:"ParentIndexNumber"`
		MediaSources      []mediaSource  `json:"MediaSources"`
		MediaStreams      []mediaStream  `json:"MediaStreams"`
	}
)

func New(config inventory.Config, doer HTTPDoer) *client {
	if doer == nil {
		doer = &http.Client{Timeout: config.Timeout}
	}

	return &client{
		baseURL:  strings.TrimRight(strings.TrimSpace(config.URL), "/"),
		token:    strings.TrimSpace(config.Token),
		pageSize: config.PageSize,
		http:     doer,
	}
}

func (c *client) ListItems(ctx context.Context, libraryID string, kind inventory.Kind) iter.Seq2[inventory.Item, error] {
	itemType := "Movie"
	if kind == inventory.KindMusic {
		itemType = "Audio"
	}

	return inventory.Paginate(ctx, c.pageSize, func(ctx context.Context, start int, size int) ([]inventory.Item, int, error) {
		query := url.Values{}
		query.Set("ParentId", libraryID)
		query.Set("Recursive", "true")
		query.Set("IncludeItemTypes", itemType)
		query.Set("StartIndex", strconv.Itoa(start))
		query.Set("Limit", strconv.Itoa(size))
		query.Set("SortBy", "SortName")

		var resp itemsResponse
		if err := c.get(ctx, "/Items", query, &resp); err != nil {
			return nil, 0, err
		}

		items := make([]inventory.Item, 0, len(resp.Items))
		for _, it := range resp.Items {
			items = append(items, inventory.Item{ID: it.ID, Title: it.Name})
		}

		log.Verbosef("Fetched %d items from library %s (offset=%d, total=%d)\n", len(items), libraryID, start, resp.TotalRecordCount)
		return items, resp.TotalRecordCount, nil
	})
}

func (c *client) GetItemDetail(ctx context.Context, itemID string) (*inventory.ItemDetail, error) {
	query := url.Values{}
	query.Set("Ids", itemID)
	query.Set("Fields", fields)

	var resp itemsResponse
	if err := c.get(ctx, "/Items", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, inventory.Wrap(inventory.ErrNotFound, "jellyfin item "+itemID, nil)
	}

	return resp.Items[0].toDetail()
}

func (c *client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build jellyfin request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return inventory.Wrap(inventory.ErrTransient, "jellyfin request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return inventory.StatusError("jellyfin "+endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return inventory.Wrap(inventory.ErrTransient, "decode jellyfin response", err)
	}

	return nil
}

func (it item) toDetail() (*inventory.ItemDetail, error) {
	var ids providerIDs
	normalised := make(map[string]any, len(it.ProviderIds))
	for k, v := range it.ProviderIds {
		normalised[strings.ToLower(k)] = v
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &ids})
	if err != nil {
		return nil, fmt.Errorf("build provider id decoder: %w", err)
	}
	if err := decoder.Decode(normalised); err != nil {
		return nil, inventory.Wrap(inventory.ErrTransient, "decode provider ids for "+it.ID, err)
	}

	detail := &inventory.ItemDetail{
		ID:          it.ID,
		Title:       it.Name,
		Path:        it.Path,
		Summary:     it.Overview,
		Year:        it.ProductionYear,
		Genres:      it.Genres,
		ProviderIDs: inventory.ParseProviderIDs(inventory.ProviderGuids(ids.Tmdb, ids.Imdb)),
		Media: inventory.MediaInfo{
			DurationMillis: it.RunTimeTicks / ticksPerMilli,
			Container:      it.Container,
		},
	}

	if len(it.MediaSources) > 0 {
		source := it.MediaSources[0]
		detail.Media.Bitrate = source.Bitrate
		if detail.Path == "" {
			detail.Path = source.Path
		}
		if detail.Media.Container == "" {
			detail.Media.Container = source.Container
		}
	}
	if detail.Media.Container == "" && detail.Path != "" {
		detail.Media.Container = strings.TrimPrefix(path.Ext(detail.Path), ".")
	}

	for _, stream := range it.MediaStreams {
		if stream.Type == "Video" {
			detail.Media.Width = stream.Width
			detail.Media.Height = stream.Height
			detail.Media.Resolution = resolutionLabel(stream.Height)
			break
		}
	}

	if it.Type == "Audio" {
		detail.Album = it.Album
		detail.AlbumYear = it.ProductionYear
		detail.AlbumArtist = it.AlbumArtist
		detail.Artists = it.Artists
		detail.TrackNumber = it.IndexNumber
		detail.DiscNumber = it.ParentIndexNumber

		// Jellyfin has no dedicated mood field; moods are conventionally stored as tags.
		detail.Moods = it.Tags
	}

	return detail, nil
}

func resolutionLabel(height int) string {
	switch {
	case height <= 0:
		return ""
	case height >= 2160:
		return "4k"
	case height >= 1080:
		return "1080"
	case height >= 720:
		return "720"
	case height >= 576:
		return "576"
	default:
		return "sd"
	}
}
