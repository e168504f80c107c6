package reconcile

import (
	"context"
	"fmt"

	"github.com/hbomb79/Curator/internal/catalog"
	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/internal/resolve"
)

const (
	unknownArtist = "Unknown Artist"
	unknownAlbum  = "Unknown Album"
)

// reconcileTrack assembles the catalog record for a single music track. Tracks
// are not enriched; everything is sourced from the inventory.
func (orchestrator *Orchestrator) reconcileTrack(ctx context.Context, resolver *resolve.Resolver, item inventory.Item) (*catalog.TrackRecord, error) {
	detail, err := orchestrator.inventory.GetItemDetail(ctx, item.ID)
	if err != nil {
		return nil, atStage(stageDetail, err)
	}
	if detail.Path == "" {
		return nil, atStage(stageDetail, fmt.Errorf("item %s has no source file", item.ID))
	}
	if !resolver.Claim(detail.Path) {
		log.Verbosef("Track %s (%s) already catalogued, skipping\n", detail.Title, detail.Path)
		return nil, nil
	}

	albumArtist := detail.AlbumArtist
	if albumArtist == "" && len(detail.Artists) > 0 {
		albumArtist = detail.Artists[0]
	}
	if albumArtist == "" {
		albumArtist = unknownArtist
	}

	albumArtistID, err := resolver.ResolvePerson(ctx, &catalog.Person{Name: albumArtist, KnownFor: "Music"})
	if err != nil {
		return nil, atStage(stageResolve, err)
	}

	albumTitle := detail.Album
	if albumTitle == "" {
		albumTitle = unknownAlbum
	}
	albumID, err := resolver.ResolveAlbum(ctx, &catalog.Album{Title: albumTitle, ArtistID: albumArtistID, Year: detail.AlbumYear})
	if err != nil {
		return nil, atStage(stageResolve, err)
	}

	artistNames := detail.Artists
	if len(artistNames) == 0 {
		artistNames = []string{albumArtist}
	}
	artists := make([]*catalog.Person, 0, len(artistNames))
	seen := make(map[string]struct{}, len(artistNames))
	for _, name := range artistNames {
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		artists = append(artists, &catalog.Person{Name: name, KnownFor: "Music"})
	}

	record := &catalog.TrackRecord{
		Track: &catalog.Track{
			Watchable: catalog.Watchable{
				SourcePath:   detail.Path,
				SourceItemID: detail.ID,
				Container:    detail.Media.Container,
			},
			Title:          detail.Title,
			AlbumID:        albumID,
			DurationMillis: detail.Media.DurationMillis,
			Bitrate:        detail.Media.Bitrate,
			TrackNumber:    detail.TrackNumber,
			DiscNumber:     detail.DiscNumber,
		},
	}
	if record.Track.Title == "" {
		record.Track.Title = item.Title
	}

	if record.ArtistIDs, err = resolver.ResolvePeople(ctx, artists); err != nil {
		return nil, atStage(stageResolve, err)
	}
	if record.GenreIDs, err = resolver.ResolveGenres(ctx, catalog.MusicGenre, detail.Genres); err != nil {
		return nil, atStage(stageResolve, err)
	}
	if record.MoodIDs, err = resolver.ResolveMoods(ctx, detail.Moods); err != nil {
		return nil, atStage(stageResolve, err)
	}

	return record, nil
}
