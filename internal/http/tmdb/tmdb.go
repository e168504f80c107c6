package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hbomb79/Curator/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	tmdbGetMovieTemplate   = "%s/movie/%s?api_key=%s"
	tmdbGetCreditsTemplate = "%s/movie/%s/credits?api_key=%s"
)

var log = logger.Get("TMDB")

type (
	Date struct{ time.Time }

	Config struct {
		ApiKey            string        `yaml:"api_key" env:"TMDB_API_KEY" env-required:"true"`
		BaseURL           string        `yaml:"base_url" env:"TMDB_BASE_URL" env-default:"https://api.themoviedb.org/3" validate:"url"`
		ImageBaseURL      string        `yaml:"image_base_url" env:"TMDB_IMAGE_BASE_URL" env-default:"https://image.tmdb.org/t/p" validate:"url"`
		PosterSize        string        `yaml:"poster_size" env:"TMDB_POSTER_SIZE" env-default:"w500"`
		BackdropSize      string        `yaml:"backdrop_size" env:"TMDB_BACKDROP_SIZE" env-default:"w1280"`
		ProfileSize       string        `yaml:"profile_size" env:"TMDB_PROFILE_SIZE" env-default:"w185"`
		LogoSize          string        `yaml:"logo_size" env:"TMDB_LOGO_SIZE" env-default:"w185"`
		RequestsPerSecond float64       `yaml:"requests_per_second" env:"TMDB_REQUESTS_PER_SECOND" env-default:"20" validate:"gt=0"`
		Burst             int           `yaml:"burst" env:"TMDB_BURST" env-default:"5" validate:"min=1"`
		Timeout           time.Duration `yaml:"timeout" env:"TMDB_TIMEOUT" env-default:"15s"`
	}

	Genre struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	Company struct {
		ID            int    `json:"id"`
		Name          string `json:"name"`
		LogoPath      string `json:"logo_path"`
		OriginCountry string `json:"origin_country"`
	}

	Movie struct {
		ID                  json.Number `json:"id"`
		ImdbID              string      `json:"imdb_id"`
		Title               string      `json:"title"`
		Tagline             string      `json:"tagline"`
		Overview            string      `json:"overview"`
		ReleaseDate         *Date       `json:"release_date"`
		Runtime             int         `json:"runtime"`
		Budget              int64       `json:"budget"`
		Revenue             int64       `json:"revenue"`
		PosterPath          string      `json:"poster_path"`
		BackdropPath        string      `json:"backdrop_path"`
		Genres              []Genre     `json:"genres"`
		ProductionCompanies []Company   `json:"production_companies"`
	}

	CastMember struct {
		ID                 int    `json:"id"`
		Name               string `json:"name"`
		OriginalName       string `json:"original_name"`
		Character          string `json:"character"`
		Order              int    `json:"order"`
		KnownForDepartment string `json:"known_for_department"`
		ProfilePath        string `json:"profile_path"`
	}

	CrewMember struct {
		ID                 int    `json:"id"`
		Name               string `json:"name"`
		OriginalName       string `json:"original_name"`
		Job                string `json:"job"`
		Department         string `json:"department"`
		KnownForDepartment string `json:"known_for_department"`
		ProfilePath        string `json:"profile_path"`
	}

	Credits struct {
		ID   json.Number  `json:"id"`
		Cast []CastMember `json:"cast"`
		Crew []CrewMember `json:"crew"`
	}

	// HTTPDoer describes the HTTP client used to talk to TMDB.
	HTTPDoer interface {
		Do(req *http.Request) (*http.Response, error)
	}

	// tmdbClient is the enrichment client used by the reconciler to fetch
	// canonical movie metadata and credits.
	// See https://developer.themoviedb.org/reference/intro/getting-started for
	// information on the TMDB API.
	tmdbClient struct {
		config  Config
		http    HTTPDoer
		limiter *rate.Limiter
	}
)

func NewClient(config Config, doer HTTPDoer) *tmdbClient {
	if doer == nil {
		doer = &http.Client{Timeout: config.Timeout}
	}

	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	config.ImageBaseURL = strings.TrimRight(config.ImageBaseURL, "/")
	return &tmdbClient{
		config:  config,
		http:    doer,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), max(config.Burst, 1)),
	}
}

// GetMovie will query the TMDB API for the movie with the provided string ID. A
// movie which TMDB does not know of results in an error wrapping ErrNotFound.
func (client *tmdbClient) GetMovie(ctx context.Context, movieID string) (*Movie, error) {
	path := fmt.Sprintf(tmdbGetMovieTemplate, client.config.BaseURL, url.PathEscape(movieID), client.config.ApiKey)
	var movie Movie
	if err := client.getJson(ctx, path, &movie); err != nil {
		return nil, err
	}

	return &movie, nil
}

// GetCredits fetches the cast and crew of the movie with the provided TMDB ID.
func (client *tmdbClient) GetCredits(ctx context.Context, movieID string) (*Credits, error) {
	path := fmt.Sprintf(tmdbGetCreditsTemplate, client.config.BaseURL, url.PathEscape(movieID), client.config.ApiKey)
	var credits Credits
	if err := client.getJson(ctx, path, &credits); err != nil {
		return nil, err
	}

	return &credits, nil
}

// ImageURL composes the absolute URL for an image path returned by TMDB
// at the given size (e.g. "w500"). An empty path yields an empty URL.
func (client *tmdbClient) ImageURL(size string, path string) string {
	if path == "" {
		return ""
	}

	return client.config.ImageBaseURL + "/" + size + path
}

func (client *tmdbClient) PosterURL(path string) string {
	return client.ImageURL(client.config.PosterSize, path)
}

func (client *tmdbClient) BackdropURL(path string) string {
	return client.ImageURL(client.config.BackdropSize, path)
}

func (client *tmdbClient) ProfileURL(path string) string {
	return client.ImageURL(client.config.ProfileSize, path)
}

func (client *tmdbClient) LogoURL(path string) string {
	return client.ImageURL(client.config.LogoSize, path)
}

func (client *tmdbClient) getJson(ctx context.Context, urlPath string, target any) error {
	if err := client.limiter.Wait(ctx); err != nil {
		return &UnknownRequestError{fmt.Sprintf("rate limiter wait aborted: %s", err.Error())}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlPath, nil)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to build request: %s", err.Error())}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.http.Do(req)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to perform GET to TMDB: %s", err.Error())}
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var tmdbError tmdbError
		if err := json.Unmarshal(respBody, &tmdbError); err != nil {
			return &FailedRequestError{httpCode: resp.StatusCode, message: "non-OK response could not be unmarshalled", tmdbCode: -1}
		}

		log.Debugf("TMDB request failed (HTTP %d): %s\n", resp.StatusCode, tmdbError.StatusMessage)
		return &FailedRequestError{httpCode: resp.StatusCode, message: tmdbError.StatusMessage, tmdbCode: tmdbError.StatusCode}
	}

	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to read response body: %s", err.Error())}
	}

	if err := json.Unmarshal(respBody, target); err != nil {
		return &UnknownRequestError{fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	return nil
}

// UnmarshalJSON parses TMDB's date-only format. TMDB reports unknown
// dates as an empty string, which leaves the date as the zero time.
func (date *Date) UnmarshalJSON(dateBytes []byte) error {
	trimmedDateString := strings.Trim(string(dateBytes), `"`)
	if trimmedDateString == "" || trimmedDateString == "null" {
		*date = Date{}
		return nil
	}

	parsed, err := time.Parse(time.DateOnly, trimmedDateString)
	if err != nil {
		return fmt.Errorf("cannot unmarshal Date due to error: %s", err.Error())
	}

	*date = Date{parsed}
	return nil
}

// Valid returns true if the date is non-nil and was populated by TMDB.
func (date *Date) Valid() bool { return date != nil && !date.IsZero() }
