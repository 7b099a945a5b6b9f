// file: internal/lyrics/genius_test.go
// version: 1.0.0
// guid: c470d550-ff96-4430-9ac4-5d13447ae6f6

package lyrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const songPage = `<html><body>
<div class="header">Take Me to Church Lyrics</div>
<div data-lyrics-container="true">[Verse 1]<br/>My lover's got humour<br/><a href="#">She's the giggle at a funeral</a></div>
<div data-lyrics-container="true">[Chorus]<br/>Take me to church<br/>3<br/>You might also like<br/>Other Song</div>
</body></html>`

func geniusServer(t *testing.T, searchCalls *atomic.Int32, failFirst bool) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			n := searchCalls.Add(1)
			if failFirst && n == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			assert.Equal(t, "Take Me to Church Hozier", r.URL.Query().Get("q"))
			fmt.Fprintf(w, `{"response":{"hits":[
				{"type":"song","result":{"title":"Take Me to Church","url":"%[1]s/cover","primary_artist":{"name":"Some Cover Band"}}},
				{"type":"song","result":{"title":"Take Me to Church","url":"%[1]s/songs/hozier","primary_artist":{"name":"Hozier"}}}
			]}}`, srv.URL)
		case "/songs/hozier":
			fmt.Fprint(w, songPage)
		default:
			http.NotFound(w, r)
		}
	}))
	return srv
}

func TestLyricsFindsArtistHitAndScrapes(t *testing.T) {
	var calls atomic.Int32
	srv := geniusServer(t, &calls, false)
	defer srv.Close()

	g := NewGenius("token", srv.URL)
	text, err := g.Lyrics(context.Background(), "Hozier", "Take Me to Church")
	require.NoError(t, err)
	assert.Equal(t, "[Verse 1]\nMy lover's got humour\nShe's the giggle at a funeral\n[Chorus]\nTake me to church", text)
}

func TestLyricsRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := geniusServer(t, &calls, true)
	defer srv.Close()

	g := NewGenius("token", srv.URL)
	g.retryDelay = 0
	text, err := g.Lyrics(context.Background(), "Hozier", "Take Me to Church")
	require.NoError(t, err)
	assert.NotEmpty(t, text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLyricsGivesUpAfterTwoAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGenius("token", srv.URL)
	g.retryDelay = 0
	_, err := g.Lyrics(context.Background(), "a", "b")
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLyricsNoHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"hits":[{"type":"song","result":{"title":"Else","url":"http://x/y","primary_artist":{"name":"Nobody"}}}]}}`)
	}))
	defer srv.Close()

	text, err := NewGenius("token", srv.URL).Lyrics(context.Background(), "Hozier", "Take Me to Church")
	assert.NoError(t, err)
	assert.Empty(t, text)
}

func TestLyricsDisabled(t *testing.T) {
	var g *Genius
	assert.False(t, g.Enabled())
	_, err := NewGenius("", "").Lyrics(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCleanLyrics(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"header", "12 ContributorsSong Lyrics[Intro]\nla la", "[Intro]\nla la"},
		{"trailer", "line one\nline two\nYou might also like\nmore", "line one\nline two"},
		{"last trailer wins", "a\nyou might also like\nb\nYou Might Also Like\nc", "a\nyou might also like\nb"},
		{"numbers", "one\n 42 \ntwo\n2Embed", "one\ntwo\n2Embed"},
		{"empty", "   ", ""},
		{"plain", "just words", "just words"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanLyrics(tc.in))
		})
	}
}
