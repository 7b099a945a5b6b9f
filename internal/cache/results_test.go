// file: internal/cache/results_test.go
// version: 1.1.0
// guid: 934482c8-7b98-4a82-9d54-55f3754012bf

package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
	"github.com/walsoup/MusicMetadataFetcher/internal/normalize"
)

func sampleCandidates() []models.CandidateTrack {
	return []models.CandidateTrack{
		{CatalogID: "1", Artist: "Arctic Monkeys", Title: "R U Mine?", Popularity: 70},
		{CatalogID: "2", Artist: "Arctic Monkeys", Title: "R U Mine? (Live)", Popularity: 30},
		{CatalogID: "3", Artist: "Cover Band", Title: "R U Mine", Popularity: 5},
	}
}

func openTemp(t *testing.T, opts ...Option) (*Results, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	r, err := Open(path, opts...)
	require.NoError(t, err)
	return r, path
}

func TestResultsRoundTripPreservesOrder(t *testing.T) {
	r, _ := openTemp(t)
	key := normalize.Key("Arctic Monkeys", "R U Mine")

	r.Put(key, sampleCandidates())
	got, ok := r.Get(key)

	require.True(t, ok)
	assert.Equal(t, sampleCandidates(), got)
}

func TestResultsNormalizesKeys(t *testing.T) {
	r, _ := openTemp(t)
	r.Put(normalize.Key("Artist", "R U Mine"), sampleCandidates())

	_, ok := r.Get(normalize.Key("ARTIST", " r u mine "))
	assert.True(t, ok)
}

func TestResultsReturnsCopies(t *testing.T) {
	r, _ := openTemp(t)
	key := normalize.Key("a", "b")
	in := sampleCandidates()
	r.Put(key, in)
	in[0].Title = "mutated"

	got, _ := r.Get(key)
	got[1].Title = "also mutated"

	again, _ := r.Get(key)
	assert.Equal(t, sampleCandidates(), again)
}

func TestResultsEmptyListIsCached(t *testing.T) {
	r, _ := openTemp(t)
	key := normalize.Key("nobody", "nothing")
	r.Put(key, nil)

	got, ok := r.Get(key)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestResultsDisableSuppressesReadsAndWrites(t *testing.T) {
	r, path := openTemp(t)
	key := normalize.Key("Hozier", "Take Me To Church")
	r.Put(key, sampleCandidates())

	r.Disable()
	assert.True(t, r.Disabled())

	_, ok := r.Get(key)
	assert.False(t, ok)

	other := normalize.Key("Hozier", "Cherry Wine")
	r.Put(other, sampleCandidates())
	require.NoError(t, r.Close())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "disabled cache must not write to disk")
}

func TestResultsPersistAcrossOpen(t *testing.T) {
	r, path := openTemp(t, WithFlushEvery(0))
	key := normalize.Key("Queen", "Bohemian Rhapsody")
	r.Put(key, sampleCandidates())
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"version\": 1", "cache file should be indented JSON")

	reopened, err := Open(path)
	require.NoError(t, err)
	got, ok := reopened.Get(key)
	require.True(t, ok)
	assert.Equal(t, sampleCandidates(), got)
}

func TestResultsPeriodicFlush(t *testing.T) {
	r, path := openTemp(t, WithFlushEvery(2))
	r.Put(normalize.Key("a", "1"), nil)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	r.Put(normalize.Key("a", "2"), nil)
	var f fileFormat
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Len(t, f.Entries, 2)
}

func TestResultsCorruptFileRecoversAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	r, err := Open(path, WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
	assert.Contains(t, logs.String(), "cache store corrupt")

	key := normalize.Key("x", "y")
	r.Put(key, sampleCandidates())
	require.NoError(t, r.Flush())

	reopened, err := Open(path)
	require.NoError(t, err)
	_, ok := reopened.Get(key)
	assert.True(t, ok)
}

func TestResultsConcurrentWriters(t *testing.T) {
	r, _ := openTemp(t, WithFlushEvery(5))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := normalize.Key("shared", "key")
			r.Put(key, []models.CandidateTrack{{CatalogID: fmt.Sprint(i)}})
			r.Put(normalize.Key("own", fmt.Sprint(i)), nil)
			_, _ = r.Get(key)
		}(i)
	}
	wg.Wait()

	got, ok := r.Get(normalize.Key("shared", "key"))
	require.True(t, ok)
	assert.Len(t, got, 1)
	assert.Equal(t, 21, r.Len())
	assert.NoError(t, r.Close())
}

func TestResultsConcurrentFlushesKeepLatestSnapshot(t *testing.T) {
	r, path := openTemp(t, WithFlushEvery(1))
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Put(normalize.Key("artist", fmt.Sprint(i)), sampleCandidates())
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Flush())
		}()
	}
	wg.Wait()
	require.NoError(t, r.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 40, reopened.Len())
}

func TestResultsClear(t *testing.T) {
	r, path := openTemp(t)
	r.Put(normalize.Key("a", "b"), nil)
	require.NoError(t, r.Flush())

	require.NoError(t, r.Clear())
	assert.Equal(t, 0, r.Len())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveMissingIsNoop(t *testing.T) {
	assert.NoError(t, Remove(filepath.Join(t.TempDir(), "absent.json")))
}
