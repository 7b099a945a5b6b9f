// file: internal/catalog/spotify.go
// version: 1.1.0
// guid: 6186cc38-4e81-44a0-a7be-985e1de7acd4

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/walsoup/MusicMetadataFetcher/internal/cache"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

const (
	maxQueryTitleRunes = 120
	maxGenreArtistIDs  = 10
)

// Config holds the Spotify client settings. Zero values take the defaults
// noted on each field.
type Config struct {
	ClientID     string
	ClientSecret string
	// BaseURL overrides the Web API root. It must end in a slash.
	BaseURL string
	// TokenURL defaults to the Spotify accounts service.
	TokenURL string
	// MaxResults caps candidates per search. Default 10.
	MaxResults int
	// MaxAttempts bounds retries on transient failures. Default 3.
	MaxAttempts int
	// BaseBackoff is the first retry delay; it doubles per attempt. Default 500ms.
	BaseBackoff time.Duration
	// MaxBackoff caps a single retry delay. Default 8s.
	MaxBackoff time.Duration
	// RequestsPerSecond paces all outgoing requests. Default 5.
	RequestsPerSecond float64
	// MaxRetryAfter caps how long a single 429 is honored. Default 60s.
	MaxRetryAfter time.Duration
	// Max429 is the number of consecutive 429s absorbed per request. Default 5.
	Max429 int
	// HTTPClient supplies the base transport and timeout. Default 15s timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
	// LastFM, when enabled, is consulted before Spotify artist genres.
	LastFM *LastFM
	// ArtistGenres keeps Spotify artist genres between runs. Default is an
	// in-memory map.
	ArtistGenres Store[[]string]
}

// Store keeps genre lookups by key. cache.Memory and cache.File satisfy it.
type Store[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
}

func (c *Config) applyDefaults() {
	if c.TokenURL == "" {
		c.TokenURL = spotifyauth.TokenURL
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 8 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = time.Minute
	}
	if c.Max429 <= 0 {
		c.Max429 = 5
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.ArtistGenres == nil {
		c.ArtistGenres = cache.NewMemory[[]string](0)
	}
}

// Client searches the Spotify catalog for track candidates.
type Client struct {
	api         *spotify.Client
	lastfm      *LastFM
	log         *slog.Logger
	maxResults  int
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	sleep       func(context.Context, time.Duration) error

	artistGenres Store[[]string]
}

// New builds a client authenticated with the client-credentials flow. Token
// requests and API calls share the same rate limiter. ctx scopes token
// refreshes for the lifetime of the client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	cfg.applyDefaults()

	baseTransport := cfg.HTTPClient.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	paced := &http.Client{
		Timeout: cfg.HTTPClient.Timeout,
		Transport: &rateLimitTransport{
			base:    baseTransport,
			limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
			maxWait: cfg.MaxRetryAfter,
			max429:  cfg.Max429,
			sleep:   sleepContext,
			now:     time.Now,
			log:     cfg.Logger,
		},
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	authed := creds.Client(context.WithValue(ctx, oauth2.HTTPClient, paced))
	authed.Timeout = cfg.HTTPClient.Timeout

	var opts []spotify.ClientOption
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, spotify.WithBaseURL(base))
	}

	return &Client{
		api:          spotify.New(authed, opts...),
		lastfm:       cfg.LastFM,
		log:          cfg.Logger,
		maxResults:   cfg.MaxResults,
		maxAttempts:  cfg.MaxAttempts,
		baseBackoff:  cfg.BaseBackoff,
		maxBackoff:   cfg.MaxBackoff,
		sleep:        sleepContext,
		artistGenres: cfg.ArtistGenres,
	}, nil
}

// BuildQuery formats a field-qualified track search. Empty parts are left
// out; quotes are removed and the title is capped at 120 runes.
func BuildQuery(artist, title string) string {
	clean := func(s string) string {
		s = strings.NewReplacer(`"`, "", "'", "", "“", "", "”", "").Replace(s)
		return strings.Join(strings.Fields(s), " ")
	}
	artist, title = clean(artist), clean(title)
	if utf8.RuneCountInString(title) > maxQueryTitleRunes {
		title = strings.TrimSpace(string([]rune(title)[:maxQueryTitleRunes]))
	}

	var parts []string
	if title != "" {
		parts = append(parts, "track:"+title)
	}
	if artist != "" {
		parts = append(parts, "artist:"+artist)
	}
	return strings.Join(parts, " ")
}

// Search returns up to MaxResults candidates in catalog relevance order.
// Transient failures are retried with exponential backoff; when attempts run
// out the error wraps ErrCatalogUnavailable.
func (c *Client) Search(ctx context.Context, artist, title string) ([]models.CandidateTrack, error) {
	query := BuildQuery(artist, title)
	if query == "" {
		return nil, nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(c.maxResults))
		if err == nil {
			return mapSearchResult(res), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		if !retryable(err) {
			break
		}
		if attempt < c.maxAttempts {
			delay := c.backoff(attempt)
			c.log.Warn("catalog search failed, retrying",
				"query", query, "attempt", attempt, "delay", delay, "error", err)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseBackoff << (attempt - 1)
	if d <= 0 || d > c.maxBackoff {
		d = c.maxBackoff
	}
	return d
}

// Genre infers a top-level genre for a candidate. Last.fm tags are tried
// first when configured, then the Spotify genres of the track and album
// artists. An empty result is not an error.
func (c *Client) Genre(ctx context.Context, cand models.CandidateTrack) (string, error) {
	if c.lastfm.Enabled() {
		g, err := c.lastfm.Genre(ctx, firstArtist(cand), cand.Title)
		if err != nil {
			c.log.Debug("last.fm genre lookup failed", "title", cand.Title, "error", err)
		} else if g != "" {
			return g, nil
		}
	}

	ids := genreArtistIDs(cand)
	if len(ids) == 0 {
		return "", nil
	}

	var missing []string
	for _, id := range ids {
		if _, ok := c.artistGenres.Get(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		spotifyIDs := make([]spotify.ID, len(missing))
		for i, id := range missing {
			spotifyIDs[i] = spotify.ID(id)
		}
		artists, err := c.api.GetArtists(ctx, spotifyIDs...)
		if err != nil {
			return "", fmt.Errorf("fetch artist genres: %w", err)
		}
		for _, a := range artists {
			if a == nil {
				continue
			}
			c.artistGenres.Set(string(a.ID), a.Genres)
		}
		// Artists the API did not return are remembered as having no genres.
		for _, id := range missing {
			if _, ok := c.artistGenres.Get(id); !ok {
				c.artistGenres.Set(id, nil)
			}
		}
	}

	var labels []weightedLabel
	for _, id := range ids {
		genres, _ := c.artistGenres.Get(id)
		for _, g := range genres {
			labels = append(labels, weightedLabel{label: g, weight: 1})
		}
	}
	return pickGenre(labels), nil
}

func firstArtist(cand models.CandidateTrack) string {
	if len(cand.Artists) > 0 {
		return cand.Artists[0]
	}
	return cand.Artist
}

// genreArtistIDs lists track artists then album artists, deduplicated and
// capped at ten IDs.
func genreArtistIDs(cand models.CandidateTrack) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, group := range [][]string{cand.ArtistIDs, cand.AlbumArtistIDs} {
		for _, id := range group {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			if len(ids) == maxGenreArtistIDs {
				return ids
			}
		}
	}
	return ids
}

func mapSearchResult(res *spotify.SearchResult) []models.CandidateTrack {
	if res == nil || res.Tracks == nil {
		return []models.CandidateTrack{}
	}
	out := make([]models.CandidateTrack, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		out = append(out, mapTrack(t))
	}
	return out
}

func mapTrack(t spotify.FullTrack) models.CandidateTrack {
	names, ids := splitArtists(t.Artists)
	albumNames, albumIDs := splitArtists(t.Album.Artists)

	cand := models.CandidateTrack{
		Artist:         strings.Join(names, ", "),
		Artists:        names,
		ArtistIDs:      ids,
		AlbumArtistIDs: albumIDs,
		Title:          t.Name,
		Album:          t.Album.Name,
		AlbumArtist:    strings.Join(albumNames, ", "),
		Year:           releaseYear(t.Album.ReleaseDate),
		CatalogID:      string(t.ID),
		Popularity:     int(t.Popularity),
	}
	if n := int(t.TrackNumber); n > 0 {
		cand.TrackNumber = strconv.Itoa(n)
		if total := int(t.Album.TotalTracks); total > 0 {
			cand.TrackNumber += "/" + strconv.Itoa(total)
		}
	}
	if len(t.Album.Images) > 0 {
		cand.CoverArtRef = t.Album.Images[0].URL
	}
	return cand
}

func splitArtists(artists []spotify.SimpleArtist) (names, ids []string) {
	for _, a := range artists {
		if a.Name == "" {
			continue
		}
		names = append(names, a.Name)
		ids = append(ids, string(a.ID))
	}
	return names, ids
}

func releaseYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	year := date[:4]
	if _, err := strconv.Atoi(year); err != nil {
		return ""
	}
	return year
}

// retryable reports whether a failed call is worth repeating. Client errors
// other than 401, 408 and 429 are permanent. A 401 covers an expired or
// rejected token and is retried within the attempt budget.
func retryable(err error) bool {
	status := 0
	var apiErr spotify.Error
	var apiErrPtr *spotify.Error
	var tokenErr *oauth2.RetrieveError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Status
	case errors.As(err, &tokenErr):
		if tokenErr.Response != nil {
			status = tokenErr.Response.StatusCode
		}
	}
	if status >= 400 && status < 500 {
		switch status {
		case http.StatusUnauthorized, http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		}
		return false
	}
	return true
}
