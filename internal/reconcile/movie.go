package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/catalog"
	"github.com/hbomb79/Curator/internal/http/tmdb"
	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/internal/resolve"
)

// reconcileMovie assembles the catalog record for a single movie. A nil record
// and nil error indicates the movie is already present in the catalog.
func (orchestrator *Orchestrator) reconcileMovie(ctx context.Context, resolver *resolve.Resolver, item inventory.Item) (*catalog.MovieRecord, error) {
	detail, err := orchestrator.inventory.GetItemDetail(ctx, item.ID)
	if err != nil {
		return nil, atStage(stageDetail, err)
	}
	if detail.Path == "" {
		return nil, atStage(stageDetail, fmt.Errorf("item %s has no source file", item.ID))
	}
	if !resolver.Claim(detail.Path) {
		log.Verbosef("Movie %s (%s) already catalogued, skipping\n", detail.Title, detail.Path)
		return nil, nil
	}

	movie := &catalog.Movie{
		Watchable: catalog.Watchable{
			SourcePath:   detail.Path,
			SourceItemID: detail.ID,
			Container:    detail.Media.Container,
		},
		Title:         detail.Title,
		Summary:       detail.Summary,
		ImdbID:        detail.ProviderIDs.Imdb,
		RuntimeMillis: detail.Media.DurationMillis,
		Width:         detail.Media.Width,
		Height:        detail.Media.Height,
		Resolution:    detail.Media.Resolution,
	}
	if movie.Title == "" {
		movie.Title = item.Title
	}
	if detail.Year > 0 {
		// Approximated from the inventory year until enrichment provides the exact date.
		date := time.Date(detail.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		movie.ReleaseDate = &date
	}

	genreNames := detail.Genres
	var (
		studios []*catalog.Studio
		credits *tmdb.Credits
	)
	if tmdbID := detail.ProviderIDs.Tmdb; tmdbID != nil {
		movie.TmdbID = tmdbID

		enriched, err := orchestrator.enricher.GetMovie(ctx, *tmdbID)
		switch {
		case errors.Is(err, tmdb.ErrNotFound):
			log.Warnf("Movie %s references unknown TMDB movie %s, ingesting without enrichment\n", movie.Title, *tmdbID)
		case err != nil:
			return nil, atStage(stageEnrich, err)
		default:
			orchestrator.applyEnrichment(movie, enriched)
			if names := enrichedGenres(enriched); len(names) > 0 {
				genreNames = names
			}
			studios = orchestrator.enrichedStudios(enriched)

			credits, err = orchestrator.enricher.GetCredits(ctx, *tmdbID)
			if errors.Is(err, tmdb.ErrNotFound) {
				credits = nil
			} else if err != nil {
				return nil, atStage(stageCredits, err)
			}
		}
	}

	record := &catalog.MovieRecord{Movie: movie}
	if record.GenreIDs, err = resolver.ResolveGenres(ctx, catalog.MovieGenre, genreNames); err != nil {
		return nil, atStage(stageResolve, err)
	}
	if record.StudioIDs, err = resolver.ResolveStudios(ctx, studios); err != nil {
		return nil, atStage(stageResolve, err)
	}
	if credits != nil {
		if record.Cast, record.Crew, err = orchestrator.resolveCredits(ctx, resolver, credits); err != nil {
			return nil, atStage(stageResolve, err)
		}
	}

	return record, nil
}

func (orchestrator *Orchestrator) applyEnrichment(movie *catalog.Movie, enriched *tmdb.Movie) {
	if enriched.Title != "" {
		movie.Title = enriched.Title
	}
	if enriched.Overview != "" {
		movie.Summary = enriched.Overview
	}
	if movie.ImdbID == nil && enriched.ImdbID != "" {
		imdb := enriched.ImdbID
		movie.ImdbID = &imdb
	}
	if movie.RuntimeMillis == 0 && enriched.Runtime > 0 {
		movie.RuntimeMillis = (time.Duration(enriched.Runtime) * time.Minute).Milliseconds()
	}
	if enriched.ReleaseDate.Valid() {
		date := enriched.ReleaseDate.Time
		movie.ReleaseDate = &date
	}

	movie.Tagline = enriched.Tagline
	movie.Budget = enriched.Budget
	movie.Revenue = enriched.Revenue
	movie.PosterURL = orchestrator.enricher.PosterURL(enriched.PosterPath)
	movie.BackdropURL = orchestrator.enricher.BackdropURL(enriched.BackdropPath)
}

func (orchestrator *Orchestrator) enrichedStudios(enriched *tmdb.Movie) []*catalog.Studio {
	studios := make([]*catalog.Studio, 0, len(enriched.ProductionCompanies))
	for _, company := range enriched.ProductionCompanies {
		studios = append(studios, &catalog.Studio{
			Name:    company.Name,
			Country: company.OriginCountry,
			LogoURL: orchestrator.enricher.LogoURL(company.LogoPath),
		})
	}

	return studios
}

func enrichedGenres(enriched *tmdb.Movie) []string {
	names := make([]string, 0, len(enriched.Genres))
	for _, genre := range enriched.Genres {
		names = append(names, genre.Name)
	}

	return names
}

func (orchestrator *Orchestrator) resolveCredits(ctx context.Context, resolver *resolve.Resolver, credits *tmdb.Credits) ([]*catalog.CastCredit, []*catalog.CrewCredit, error) {
	castMembers := credits.Cast
	if limit := orchestrator.config.MaxCast; limit > 0 && len(castMembers) > limit {
		castMembers = castMembers[:limit]
	}

	cast := make([]*catalog.CastCredit, 0, len(castMembers))
	for _, member := range castMembers {
		if member.Name == "" {
			continue
		}

		personID, err := resolver.ResolvePerson(ctx, &catalog.Person{
			Name:         member.Name,
			OriginalName: member.OriginalName,
			KnownFor:     member.KnownForDepartment,
			ImageURL:     orchestrator.enricher.ProfileURL(member.ProfilePath),
		})
		if err != nil {
			return nil, nil, err
		}

		cast = append(cast, &catalog.CastCredit{ID: uuid.New(), PersonID: personID, Character: member.Character, Ordering: member.Order})
	}

	crew := make([]*catalog.CrewCredit, 0, len(credits.Crew))
	for _, member := range credits.Crew {
		if member.Name == "" {
			continue
		}

		personID, err := resolver.ResolvePerson(ctx, &catalog.Person{
			Name:         member.Name,
			OriginalName: member.OriginalName,
			KnownFor:     member.KnownForDepartment,
			ImageURL:     orchestrator.enricher.ProfileURL(member.ProfilePath),
		})
		if err != nil {
			return nil, nil, err
		}

		crew = append(crew, &catalog.CrewCredit{ID: uuid.New(), PersonID: personID, Job: member.Job, Department: member.Department})
	}

	return cast, crew, nil
}
