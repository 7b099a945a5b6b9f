// file: internal/cache/file.go
// version: 1.0.0
// guid: 00f08ca7-d181-4c7b-8114-8282080b190f

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Genre lookups kept between runs, stored next to the result cache.
const (
	ArtistGenresFile = "artist-genres.json"
	LastFMGenresFile = "lastfm-genres.json"
)

// GenrePaths returns the genre store files that live beside the result
// cache at resultsPath.
func GenrePaths(resultsPath string) []string {
	dir := filepath.Dir(resultsPath)
	return []string{
		filepath.Join(dir, ArtistGenresFile),
		filepath.Join(dir, LastFMGenresFile),
	}
}

type mapFormat[T any] struct {
	Version int          `json:"version"`
	Entries map[string]T `json:"entries"`
}

// File is a string-keyed map persisted as one indented JSON file. It is
// safe for concurrent use and flushes with the same locking as Results.
type File[T any] struct {
	path string
	log  *slog.Logger

	flushMu sync.Mutex
	mu      sync.RWMutex
	items   map[string]T
	dirty   bool
}

// OpenFile loads the map at path. Missing, unreadable or corrupt files
// start empty; the latter two are logged and replaced on the next flush.
func OpenFile[T any](path string, log *slog.Logger) (*File[T], error) {
	if path == "" {
		return nil, fmt.Errorf("cache path is empty")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	f := &File[T]{path: path, log: log, items: make(map[string]T)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && len(data) == 0:
	case err != nil:
		log.Warn("cache store unreadable, starting empty", "path", path, "error", err)
		f.dirty = true
	default:
		var m mapFormat[T]
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("cache store corrupt, starting empty", "path", path, "error", err)
			f.dirty = true
			break
		}
		for k, v := range m.Entries {
			f.items[k] = v
		}
	}
	return f, nil
}

// Get returns the value stored under key.
func (f *File[T]) Get(key string) (T, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.items[key]
	return v, ok
}

// Set stores value under key. It is written on the next Flush.
func (f *File[T]) Set(key string, value T) {
	f.mu.Lock()
	f.items[key] = value
	f.dirty = true
	f.mu.Unlock()
}

// Len returns the number of stored keys.
func (f *File[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

// Path returns the backing file.
func (f *File[T]) Path() string {
	return f.path
}

// Flush writes the map when it changed since the last flush.
func (f *File[T]) Flush() error {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	f.mu.Lock()
	if !f.dirty {
		f.mu.Unlock()
		return nil
	}
	data, err := json.MarshalIndent(mapFormat[T]{Version: fileVersion, Entries: f.items}, "", "  ")
	f.dirty = false
	f.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	if err := writeLocked(f.path, data); err != nil {
		f.mu.Lock()
		f.dirty = true
		f.mu.Unlock()
		return err
	}
	return nil
}

// Close flushes the map.
func (f *File[T]) Close() error {
	return f.Flush()
}
