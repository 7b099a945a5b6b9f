// file: internal/catalog/lastfm.go
// version: 1.1.0
// guid: 99e4bd77-5e4e-491f-9b46-7e0e69eb169b

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/walsoup/MusicMetadataFetcher/internal/cache"
)

// DefaultLastFMURL is the Last.fm web service root.
const DefaultLastFMURL = "https://ws.audioscrobbler.com/2.0/"

// LastFM infers genres from Last.fm community tags.
type LastFM struct {
	apiKey  string
	baseURL string
	client  *http.Client
	results Store[string]
}

// LastFMOption configures a LastFM client.
type LastFMOption func(*LastFM)

// WithGenreStore keeps resolved genres in s, keyed by lower-cased
// "artist|title". Default is an in-memory map.
func WithGenreStore(s Store[string]) LastFMOption {
	return func(l *LastFM) {
		if s != nil {
			l.results = s
		}
	}
}

// NewLastFM creates a Last.fm client. An empty baseURL uses DefaultLastFMURL.
func NewLastFM(apiKey, baseURL string, opts ...LastFMOption) *LastFM {
	if baseURL == "" {
		baseURL = DefaultLastFMURL
	}
	l := &LastFM{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 6 * time.Second},
		results: cache.NewMemory[string](0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enabled reports whether an API key is configured.
func (l *LastFM) Enabled() bool {
	return l != nil && l.apiKey != ""
}

type lastfmCount int

func (c *lastfmCount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*c = 0
		return nil
	}
	*c = lastfmCount(n)
	return nil
}

type topTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string      `json:"name"`
			Count lastfmCount `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

// Genre returns the canonical genre with the highest summed tag count for a
// track, falling back to the artist's tags. Empty means no usable tags.
func (l *LastFM) Genre(ctx context.Context, artist, title string) (string, error) {
	if !l.Enabled() || artist == "" || title == "" {
		return "", nil
	}
	key := strings.ToLower(artist) + "|" + strings.ToLower(title)
	if g, ok := l.results.Get(key); ok {
		return g, nil
	}

	tags, err := l.topTags(ctx, url.Values{"method": {"track.gettoptags"}, "artist": {artist}, "track": {title}})
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		tags, err = l.topTags(ctx, url.Values{"method": {"artist.gettoptags"}, "artist": {artist}})
		if err != nil {
			return "", err
		}
	}

	genre := pickGenre(tags)
	l.results.Set(key, genre)
	return genre, nil
}

func (l *LastFM) topTags(ctx context.Context, params url.Values) ([]weightedLabel, error) {
	params.Set("api_key", l.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build last.fm request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("last.fm %s: %w", params.Get("method"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var body topTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode last.fm %s: %w", params.Get("method"), err)
	}

	var out []weightedLabel
	for _, t := range body.TopTags.Tag {
		name := strings.TrimSpace(t.Name)
		if name != "" && t.Count > 0 {
			out = append(out, weightedLabel{label: name, weight: int(t.Count)})
		}
	}
	return out, nil
}
