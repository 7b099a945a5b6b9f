// file: internal/catalog/spotify_test.go
// version: 1.1.0
// guid: cff8e953-669a-4972-a203-e8c476781c41

package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/walsoup/MusicMetadataFetcher/internal/cache"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

const hozierSearch = `{
  "tracks": {
    "href": "", "limit": 10, "offset": 0, "total": 2,
    "items": [
      {
        "id": "t1", "name": "Take Me to Church", "popularity": 80, "track_number": 1,
        "artists": [{"id": "a1", "name": "Hozier"}],
        "album": {
          "name": "Hozier", "release_date": "2014-09-19", "total_tracks": 13,
          "images": [{"url": "https://img.example/hozier.jpg", "height": 640, "width": 640}],
          "artists": [{"id": "a1", "name": "Hozier"}]
        }
      },
      {
        "id": "t2", "name": "Take Me to Church - Live", "popularity": 40, "track_number": 7,
        "artists": [{"id": "a1", "name": "Hozier"}, {"id": "a9", "name": "Guest"}],
        "album": {"name": "Live", "release_date": "2015", "total_tracks": 9, "images": [], "artists": []}
      }
    ]
  }
}`

type fakeSpotify struct {
	srv        *httptest.Server
	searches   atomic.Int32
	artistHits atomic.Int32
	tokens     atomic.Int32
	search     func(n int32, w http.ResponseWriter, r *http.Request)
	artists    string
}

func newFakeSpotify(t *testing.T) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		n := f.searches.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if f.search != nil {
			f.search(n, w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, hozierSearch)
	})
	mux.HandleFunc("/v1/artists", func(w http.ResponseWriter, r *http.Request) {
		f.artistHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, f.artists)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSpotify) client(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	cfg.BaseURL = f.srv.URL + "/v1/"
	cfg.TokenURL = f.srv.URL + "/token"
	cfg.RequestsPerSecond = 1000
	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func writeAPIError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"status":%d,"message":"boom"}}`, status)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestBuildQuery(t *testing.T) {
	cases := []struct {
		artist, title, want string
	}{
		{"Hozier", "Take Me To Church", "track:Take Me To Church artist:Hozier"},
		{"", "Take Me To Church", "track:Take Me To Church"},
		{"Hozier", "", "artist:Hozier"},
		{"", "", ""},
		{`The "Band"`, `Don't  Stop`, "track:Dont Stop artist:The Band"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BuildQuery(tc.artist, tc.title))
	}

	long := strings.Repeat("x", 200)
	assert.Equal(t, "track:"+strings.Repeat("x", 120), BuildQuery("", long))
}

func TestSearchMapsCandidates(t *testing.T) {
	f := newFakeSpotify(t)
	c := f.client(t, Config{})

	got, err := c.Search(context.Background(), "Hozier", "Take Me To Church")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.CandidateTrack{
		Artist:         "Hozier",
		Artists:        []string{"Hozier"},
		ArtistIDs:      []string{"a1"},
		AlbumArtistIDs: []string{"a1"},
		Title:          "Take Me to Church",
		Album:          "Hozier",
		AlbumArtist:    "Hozier",
		Year:           "2014",
		TrackNumber:    "1/13",
		CatalogID:      "t1",
		Popularity:     80,
		CoverArtRef:    "https://img.example/hozier.jpg",
	}, got[0])

	assert.Equal(t, "Hozier, Guest", got[1].Artist)
	assert.Equal(t, "2015", got[1].Year)
	assert.Equal(t, "7/9", got[1].TrackNumber)
	assert.Empty(t, got[1].CoverArtRef)
	assert.Empty(t, got[1].AlbumArtist)
	assert.Equal(t, int32(1), f.tokens.Load())
}

func TestSearchSendsQueryAndLimit(t *testing.T) {
	f := newFakeSpotify(t)
	var query, limit, kind string
	f.search = func(_ int32, w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		limit = r.URL.Query().Get("limit")
		kind = r.URL.Query().Get("type")
		fmt.Fprint(w, `{"tracks":{"items":[]}}`)
	}
	c := f.client(t, Config{MaxResults: 5})

	got, err := c.Search(context.Background(), "Arctic Monkeys", "R U Mine?")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, "track:R U Mine? artist:Arctic Monkeys", query)
	assert.Equal(t, "5", limit)
	assert.Equal(t, "track", kind)
}

func TestSearchEmptyIdentitySkipsRequest(t *testing.T) {
	f := newFakeSpotify(t)
	c := f.client(t, Config{})

	got, err := c.Search(context.Background(), " ", "")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int32(0), f.searches.Load())
}

func TestSearchRetriesServerErrors(t *testing.T) {
	f := newFakeSpotify(t)
	f.search = func(n int32, w http.ResponseWriter, r *http.Request) {
		if n == 1 {
			writeAPIError(w, http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, hozierSearch)
	}
	c := f.client(t, Config{})

	got, err := c.Search(context.Background(), "Hozier", "Take Me To Church")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), f.searches.Load())
}

func TestSearchExhaustionIsCatalogUnavailable(t *testing.T) {
	f := newFakeSpotify(t)
	f.search = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusBadGateway)
	}
	c := f.client(t, Config{MaxAttempts: 3})

	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := c.Search(context.Background(), "Hozier", "Take Me To Church")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCatalogUnavailable))
	assert.Equal(t, int32(3), f.searches.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, delays)
}

func TestSearchClientErrorIsNotRetried(t *testing.T) {
	f := newFakeSpotify(t)
	f.search = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusBadRequest)
	}
	c := f.client(t, Config{})

	_, err := c.Search(context.Background(), "Hozier", "Take Me To Church")
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Equal(t, int32(1), f.searches.Load())
}

func TestSearchRetriesUnauthorized(t *testing.T) {
	f := newFakeSpotify(t)
	f.search = func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			writeAPIError(w, http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, hozierSearch)
	}
	c := f.client(t, Config{})

	got, err := c.Search(context.Background(), "Hozier", "Take Me To Church")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), f.searches.Load())
}

func TestSearchUnauthorizedExhaustsBudget(t *testing.T) {
	f := newFakeSpotify(t)
	f.search = func(_ int32, w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusUnauthorized)
	}
	c := f.client(t, Config{MaxAttempts: 3})

	_, err := c.Search(context.Background(), "Hozier", "Take Me To Church")
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Equal(t, int32(3), f.searches.Load())
}

func TestRetryableStatuses(t *testing.T) {
	tokenErr := func(code int) error {
		return &oauth2.RetrieveError{Response: &http.Response{StatusCode: code}}
	}
	assert.True(t, retryable(spotify.Error{Status: http.StatusUnauthorized}))
	assert.True(t, retryable(tokenErr(http.StatusUnauthorized)))
	assert.True(t, retryable(spotify.Error{Status: http.StatusServiceUnavailable}))
	assert.False(t, retryable(spotify.Error{Status: http.StatusForbidden}))
	assert.False(t, retryable(tokenErr(http.StatusBadRequest)))
	assert.True(t, retryable(errors.New("connection reset")))
}

func TestSearchHonorsRetryAfterWithoutSpendingAttempts(t *testing.T) {
	f := newFakeSpotify(t)
	f.search = func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n <= 2 {
			w.Header().Set("Retry-After", "0")
			writeAPIError(w, http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, hozierSearch)
	}
	c := f.client(t, Config{MaxAttempts: 1})

	got, err := c.Search(context.Background(), "Hozier", "Take Me To Church")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(3), f.searches.Load())
}

func TestSearchCanceledContext(t *testing.T) {
	f := newFakeSpotify(t)
	c := f.client(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, "Hozier", "Take Me To Church")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), f.searches.Load())
}

func TestGenreFromArtistGenresIsCached(t *testing.T) {
	f := newFakeSpotify(t)
	f.artists = `{"artists":[
		{"id":"a1","name":"Hozier","genres":["irish singer-songwriter","modern rock","pop"]},
		{"id":"a2","name":"Band","genres":["alt rock"]}
	]}`
	c := f.client(t, Config{})
	cand := models.CandidateTrack{Title: "Song", ArtistIDs: []string{"a1"}, AlbumArtistIDs: []string{"a2", "a1"}}

	g, err := c.Genre(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, "Rock", g)

	g, err = c.Genre(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, "Rock", g)
	assert.Equal(t, int32(1), f.artistHits.Load())
}

func TestArtistGenreStoreSurvivesRestart(t *testing.T) {
	f := newFakeSpotify(t)
	f.artists = `{"artists":[{"id":"a1","name":"Hozier","genres":["modern rock"]}]}`
	cand := models.CandidateTrack{Title: "Song", ArtistIDs: []string{"a1"}}
	path := filepath.Join(t.TempDir(), cache.ArtistGenresFile)

	store, err := cache.OpenFile[[]string](path, nil)
	require.NoError(t, err)
	g, err := f.client(t, Config{ArtistGenres: store}).Genre(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, "Rock", g)
	require.NoError(t, store.Close())

	reopened, err := cache.OpenFile[[]string](path, nil)
	require.NoError(t, err)
	g, err = f.client(t, Config{ArtistGenres: reopened}).Genre(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, "Rock", g)
	assert.Equal(t, int32(1), f.artistHits.Load())
}

func TestGenreWithoutArtistsIsEmpty(t *testing.T) {
	f := newFakeSpotify(t)
	c := f.client(t, Config{})

	g, err := c.Genre(context.Background(), models.CandidateTrack{Title: "x"})
	require.NoError(t, err)
	assert.Empty(t, g)
	assert.Equal(t, int32(0), f.artistHits.Load())
}

func TestGenrePrefersLastFM(t *testing.T) {
	lf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"toptags":{"tag":[{"name":"jazz","count":90},{"name":"pop","count":10}]}}`)
	}))
	defer lf.Close()

	f := newFakeSpotify(t)
	c := f.client(t, Config{LastFM: NewLastFM("key", lf.URL)})

	g, err := c.Genre(context.Background(), models.CandidateTrack{Artist: "A", Title: "T", ArtistIDs: []string{"a1"}})
	require.NoError(t, err)
	assert.Equal(t, "Jazz", g)
	assert.Equal(t, int32(0), f.artistHits.Load())
}

func TestGenreArtistIDsCapped(t *testing.T) {
	var track, album []string
	for i := 0; i < 8; i++ {
		track = append(track, fmt.Sprintf("t%d", i))
		album = append(album, fmt.Sprintf("b%d", i))
	}
	ids := genreArtistIDs(models.CandidateTrack{ArtistIDs: track, AlbumArtistIDs: album})
	require.Len(t, ids, 10)
	assert.Equal(t, "t0", ids[0])
	assert.Equal(t, "b1", ids[9])
}

func TestReleaseYear(t *testing.T) {
	assert.Equal(t, "2014", releaseYear("2014-09-19"))
	assert.Equal(t, "1999", releaseYear("1999"))
	assert.Empty(t, releaseYear("99"))
	assert.Empty(t, releaseYear("abcd-01"))
}
