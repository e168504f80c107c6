package stats

import (
	"context"
	"net/http"

	"github.com/hbomb79/Curator/internal/api/util"
	"github.com/hbomb79/Curator/internal/catalog"
	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/labstack/echo/v4"
)

type (
	Store interface {
		Counts(ctx context.Context) (*catalog.Counts, error)
		GenresForDomain(ctx context.Context, domain catalog.GenreDomain) ([]*catalog.Genre, error)
	}

	GenreDto struct {
		ID  string `json:"id"`
		Tag string `json:"tag"`
	}

	Controller struct {
		store Store
	}
)

var controllerLogger = logger.Get("StatsController")

func New(store Store) *Controller {
	return &Controller{store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/stats/", controller.counts)
	eg.GET("/genres/", controller.genres)
}

func (controller *Controller) counts(ec echo.Context) error {
	counts, err := controller.store.Counts(ec.Request().Context())
	if err != nil {
		controllerLogger.Emit(logger.ERROR, "Failed to count catalog: %v\n", err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, counts)
}

// genres lists the genres of a single domain, given by the 'domain'
// query param (defaults to movie).
func (controller *Controller) genres(ec echo.Context) error {
	domain := catalog.GenreDomain(ec.QueryParam("domain"))
	switch domain {
	case "":
		domain = catalog.MovieGenre
	case catalog.MovieGenre, catalog.MusicGenre:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Genre domain must be one of 'movie' or 'music'")
	}

	genres, err := controller.store.GenresForDomain(ec.Request().Context(), domain)
	if err != nil {
		controllerLogger.Emit(logger.ERROR, "Failed to list %s genres: %v\n", domain, err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(genres, NewGenreDto))
}

func NewGenreDto(genre *catalog.Genre) GenreDto {
	return GenreDto{ID: genre.ID.String(), Tag: genre.Tag}
}
