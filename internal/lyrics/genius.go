// file: internal/lyrics/genius.go
// version: 1.0.0
// guid: 8a70139b-75e3-42ca-9ca9-d479ae3cf2d8

// Package lyrics fetches song lyrics from Genius.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/walsoup/MusicMetadataFetcher/internal/normalize"
)

// DefaultAPIURL is the Genius API root.
const DefaultAPIURL = "https://api.genius.com/"

// ErrDisabled is returned when no Genius token is configured.
var ErrDisabled = errors.New("genius lyrics provider is not configured")

// Genius searches the Genius API for a song and scrapes its lyrics page.
type Genius struct {
	token      string
	baseURL    string
	client     *http.Client
	attempts   int
	retryDelay time.Duration
}

// NewGenius creates a client. An empty baseURL uses DefaultAPIURL.
func NewGenius(token, baseURL string) *Genius {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Genius{
		token:      token,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		attempts:   2,
		retryDelay: 2 * time.Second,
	}
}

// Enabled reports whether a token is configured.
func (g *Genius) Enabled() bool {
	return g != nil && g.token != ""
}

type searchResponse struct {
	Response struct {
		Hits []struct {
			Type   string `json:"type"`
			Result struct {
				Title         string `json:"title"`
				URL           string `json:"url"`
				PrimaryArtist struct {
					Name string `json:"name"`
				} `json:"primary_artist"`
			} `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

// Lyrics returns the cleaned lyrics for a song. An empty string with a nil
// error means the song or its lyrics were not found.
func (g *Genius) Lyrics(ctx context.Context, artist, title string) (string, error) {
	if !g.Enabled() {
		return "", ErrDisabled
	}

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		text, err := g.fetch(ctx, artist, title)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < g.attempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.retryDelay):
			}
		}
	}
	return "", lastErr
}

func (g *Genius) fetch(ctx context.Context, artist, title string) (string, error) {
	songURL, err := g.search(ctx, artist, title)
	if err != nil || songURL == "" {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, songURL, nil)
	if err != nil {
		return "", fmt.Errorf("build lyrics page request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch lyrics page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lyrics page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse lyrics page: %w", err)
	}
	return CleanLyrics(extractLyrics(doc)), nil
}

// search returns the page URL of the best hit, or "" when nothing fits.
func (g *Genius) search(ctx context.Context, artist, title string) (string, error) {
	q := strings.TrimSpace(title + " " + artist)
	endpoint := g.baseURL + "search?" + url.Values{"q": {q}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build genius search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("genius search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genius search returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode genius search: %w", err)
	}

	wantArtist := normalize.Fold(artist)
	var fallback string
	for _, hit := range body.Response.Hits {
		if hit.Type != "song" || hit.Result.URL == "" {
			continue
		}
		got := normalize.Fold(hit.Result.PrimaryArtist.Name)
		if wantArtist == "" || strings.Contains(got, wantArtist) || strings.Contains(wantArtist, got) {
			return hit.Result.URL, nil
		}
		if fallback == "" && normalize.Fold(hit.Result.Title) == normalize.Fold(title) {
			fallback = hit.Result.URL
		}
	}
	return fallback, nil
}

// extractLyrics joins the text of every lyrics container, turning line
// breaks into newlines.
func extractLyrics(doc *goquery.Document) string {
	containers := doc.Find(`div[data-lyrics-container="true"]`)
	if containers.Length() == 0 {
		containers = doc.Find("div.lyrics")
	}

	var parts []string
	containers.Each(func(_ int, s *goquery.Selection) {
		s.Find("br").ReplaceWithHtml("\n")
		// Annotation headers and contributor blurbs are not lyrics.
		s.Find(`[data-exclude-from-selection="true"]`).Remove()
		parts = append(parts, s.Text())
	})
	return strings.Join(parts, "\n")
}

// CleanLyrics drops a leading "... Lyrics" header, anything from the last
// "You might also like" onwards, and lines that are only a number.
func CleanLyrics(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	first, rest, _ := strings.Cut(text, "\n")
	if i := strings.Index(first, "Lyrics"); i >= 0 {
		text = strings.TrimSpace(first[i+len("Lyrics"):] + "\n" + rest)
	}

	if i := strings.LastIndex(strings.ToLower(text), "you might also like"); i >= 0 {
		text = text[:i]
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isNumeric(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t\r"))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
