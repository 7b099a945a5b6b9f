// file: internal/cache/file_test.go
// version: 1.0.0
// guid: 08c5ffda-b44f-4401-b27d-2661330c6bd7

package cache

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genres", ArtistGenresFile)
	f, err := OpenFile[[]string](path, nil)
	require.NoError(t, err)

	f.Set("artist-1", []string{"indie rock", "modern rock"})
	f.Set("artist-2", nil)
	require.NoError(t, f.Close())

	again, err := OpenFile[[]string](path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Len())
	got, ok := again.Get("artist-1")
	require.True(t, ok)
	assert.Equal(t, []string{"indie rock", "modern rock"}, got)
	got, ok = again.Get("artist-2")
	assert.True(t, ok, "artists without genres are remembered")
	assert.Empty(t, got)
	_, ok = again.Get("artist-3")
	assert.False(t, ok)
}

func TestFileFlushSkipsUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), LastFMGenresFile)
	f, err := OpenFile[string](path, nil)
	require.NoError(t, err)

	require.NoError(t, f.Flush())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing to write yet")

	f.Set("hozier|take me to church", "Indie")
	require.NoError(t, f.Flush())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileCorruptStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), LastFMGenresFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var logs bytes.Buffer
	f, err := OpenFile[string](path, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
	assert.Contains(t, logs.String(), "corrupt")

	require.NoError(t, f.Close())
	again, err := OpenFile[string](path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Len())
}

func TestFileConcurrentFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), LastFMGenresFile)
	f, err := OpenFile[string](path, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.Set(fmt.Sprint(i), "Rock")
			assert.NoError(t, f.Flush())
		}(i)
	}
	wg.Wait()
	require.NoError(t, f.Close())

	again, err := OpenFile[string](path, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, again.Len())
}

func TestGenrePaths(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, []string{
		filepath.Join(dir, ArtistGenresFile),
		filepath.Join(dir, LastFMGenresFile),
	}, GenrePaths(filepath.Join(dir, "catalog-cache.json")))
}
