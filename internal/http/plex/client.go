// Package plex implements an inventory client for the Plex Media Server JSON API.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/pkg/logger"
)

const (
	tokenHeader = "X-Plex-Token"
	startHeader = "X-Plex-Container-Start"
	sizeHeader  = "X-Plex-Container-Size"

	movieType = "1"
	trackType = "10"
)

var log = logger.Get("Plex")

type (
	// HTTPDoer describes the HTTP client used by the Plex client.
	HTTPDoer interface {
		Do(req *http.Request) (*http.Response, error)
	}

	client struct {
		baseURL  string
		token    string
		pageSize int
		http     HTTPDoer
	}

	mediaContainer struct {
		Container struct {
			Size      int        `json:"size"`
			TotalSize int        `json:"totalSize"`
			Metadata  []metadata `json:"Metadata"`
		} `json:"MediaContainer"`
	}

	tag struct {
		Tag string `json:"tag"`
	}

	guid struct {
		ID string `json:"id"`
	}

	part struct {
		File      string `json:"file"`
		Duration  int64  `json:"duration"`
		Container string `json:"container"`
	}

	media struct {
		Duration        int64  `json:"duration"`
		Bitrate         int    `json:"bitrate"`
		Width           int    `json:"width"`
		Height          int    `json:"height"`
		Container       string `json:"container"`
		VideoResolution string `json:"videoResolution"`
		Part            []part `json:"Part"`
	}

	metadata struct {
		RatingKey        string  `json:"ratingKey"`
		Type             string  `json:"type"`
		Title            string  `json:"title"`
		OriginalTitle    string  `json:"originalTitle"`
		Summary          string  `json:"summary"`
		Year             int     `json:"year"`
		Duration         int64   `json:"duration"`
		Index            int     `json:"index"`
		ParentIndex      int     `json:"parentIndex"`
		ParentTitle      string  `json:"parentTitle"`
		ParentYear       int     `json:"parentYear"`
		GrandparentTitle string  `json:"grandparentTitle"`
		Guid             []guid  `json:"Guid"`
		Media            []media `json:"Media"`
		Genre            []tag   `json:"Genre"`
		Mood             []tag   `json:"Mood"`
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
	itemType := movieType
	if kind == inventory.KindMusic {
		itemType = trackType
	}

	return inventory.Paginate(ctx, c.pageSize, func(ctx context.Context, start int, size int) ([]inventory.Item, int, error) {
		endpoint := fmt.Sprintf("%s/library/sections/%s/all?type=%s", c.baseURL, url.PathEscape(libraryID), itemType)

		var container mediaContainer
		if err := c.get(ctx, endpoint, map[string]string{
			startHeader: strconv.Itoa(start),
			sizeHeader:  strconv.Itoa(size),
		}, &container); err != nil {
			return nil, 0, err
		}

		items := make([]inventory.Item, 0, len(container.Container.Metadata))
		for _, m := range container.Container.Metadata {
			items = append(items, inventory.Item{ID: m.RatingKey, Title: m.Title})
		}

		total := container.Container.TotalSize
		if total == 0 {
			// Older servers omit totalSize; a short page marks the end.
			total = start + len(items)
			if len(items) == size {
				total++
			}
		}

		log.Verbosef("Fetched %d items from library %s (offset=%d, total=%d)\n", len(items), libraryID, start, total)
		return items, total, nil
	})
}

func (c *client) GetItemDetail(ctx context.Context, itemID string) (*inventory.ItemDetail, error) {
	endpoint := fmt.Sprintf("%s/library/metadata/%s", c.baseURL, url.PathEscape(itemID))

	var container mediaContainer
	if err := c.get(ctx, endpoint, nil, &container); err != nil {
		return nil, err
	}
	if len(container.Container.Metadata) == 0 {
		return nil, inventory.Wrap(inventory.ErrNotFound, "plex item "+itemID, nil)
	}

	return container.Container.Metadata[0].toDetail(), nil
}

func (c *client) get(ctx context.Context, endpoint string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build plex request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tokenHeader, c.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return inventory.Wrap(inventory.ErrTransient, "plex request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return inventory.StatusError("plex "+req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return inventory.Wrap(inventory.ErrTransient, "decode plex response", err)
	}

	return nil
}

func (m metadata) toDetail() *inventory.ItemDetail {
	guids := make([]string, 0, len(m.Guid))
	for _, g := range m.Guid {
		guids = append(guids, g.ID)
	}

	detail := &inventory.ItemDetail{
		ID:          m.RatingKey,
		Title:       m.Title,
		Summary:     m.Summary,
		Year:        m.Year,
		Genres:      tags(m.Genre),
		Moods:       tags(m.Mood),
		ProviderIDs: inventory.ParseProviderIDs(guids),
		Media:       inventory.MediaInfo{DurationMillis: m.Duration},
	}

	if len(m.Media) > 0 {
		md := m.Media[0]
		detail.Media = inventory.MediaInfo{
			DurationMillis: md.Duration,
			Container:      md.Container,
			Width:          md.Width,
			Height:         md.Height,
			Resolution:     md.VideoResolution,
			Bitrate:        md.Bitrate,
		}
		if detail.Media.DurationMillis == 0 {
			detail.Media.DurationMillis = m.Duration
		}
		if len(md.Part) > 0 {
			detail.Path = md.Part[0].File
			if detail.Media.Container == "" {
				detail.Media.Container = md.Part[0].Container
			}
		}
	}

	if m.Type == "track" {
		detail.Album = m.ParentTitle
		detail.AlbumYear = m.ParentYear
		detail.AlbumArtist = m.GrandparentTitle
		detail.TrackNumber = m.Index
		detail.DiscNumber = m.ParentIndex

		// Plex only reports a distinct track artist via originalTitle when
		// it differs from the album artist.
		if m.OriginalTitle != "" {
			detail.Artists = []string{m.OriginalTitle}
		} else if m.GrandparentTitle != "" {
			detail.Artists = []string{m.GrandparentTitle}
		}
	}

	return detail
}

func tags(ts []tag) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Tag)
	}

	return out
}
