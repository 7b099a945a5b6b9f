// file: internal/cache/results.go
// version: 1.1.0
// guid: f6561a4d-88c9-45a9-a3a0-9c39a8f26a4e

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
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
	"github.com/walsoup/MusicMetadataFetcher/internal/normalize"
)

const (
	fileVersion       = 1
	defaultFlushEvery = 25
	defaultRelPath    = "musicmetadatafetcher/catalog-cache.json"
)

// Entry is one cached catalog response.
type Entry struct {
	Key        string                  `json:"key"`
	Candidates []models.CandidateTrack `json:"candidates"`
	FetchedAt  time.Time               `json:"fetched_at"`
}

type fileFormat struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// Results maps normalized (artist, title) queries to catalog candidate
// lists. It is persisted as one indented JSON file.
type Results struct {
	path       string
	flushEvery int
	log        *slog.Logger
	now        func() time.Time

	// flushMu orders flushes so an older snapshot never overwrites a newer one.
	flushMu  sync.Mutex
	mu       sync.RWMutex
	entries  map[string]Entry
	pending  int
	disabled atomic.Bool
}

// Option configures a Results store.
type Option func(*Results)

// WithFlushEvery flushes to disk after n puts. Zero disables periodic flushes.
func WithFlushEvery(n int) Option {
	return func(r *Results) { r.flushEvery = n }
}

// WithLogger sets the logger used for recovery warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Results) {
		if l != nil {
			r.log = l
		}
	}
}

// DefaultPath returns the cache file location under the XDG cache home.
func DefaultPath() (string, error) {
	return xdg.CacheFile(defaultRelPath)
}

// Open loads the store at path. A missing file is an empty cache. An
// unreadable or corrupt file is also treated as empty; a warning is logged
// and the file is replaced on the next flush.
func Open(path string, opts ...Option) (*Results, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path is empty")
	}
	r := &Results{
		path:       path,
		flushEvery: defaultFlushEvery,
		log:        slog.Default(),
		now:        time.Now,
		entries:    make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	r.load()
	return r, nil
}

func (r *Results) load() {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		r.log.Warn("cache store unreadable, starting empty", "path", r.path, "error", err)
		return
	}
	if len(data) == 0 {
		return
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		r.log.Warn("cache store corrupt, starting empty", "path", r.path, "error", err)
		r.pending = 1
		return
	}
	for k, e := range f.Entries {
		k = normalize.NormalizeKey(k)
		e.Key = k
		r.entries[k] = e
	}
}

// Get returns a copy of the candidates stored under key.
func (r *Results) Get(key string) ([]models.CandidateTrack, bool) {
	if r.disabled.Load() {
		return nil, false
	}
	key = normalize.NormalizeKey(key)
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	out := make([]models.CandidateTrack, len(e.Candidates))
	copy(out, e.Candidates)
	return out, true
}

// Put stores candidates under key. Concurrent puts are serialized and the
// last writer wins.
func (r *Results) Put(key string, candidates []models.CandidateTrack) {
	if r.disabled.Load() {
		return
	}
	key = normalize.NormalizeKey(key)
	stored := make([]models.CandidateTrack, len(candidates))
	copy(stored, candidates)

	r.mu.Lock()
	r.entries[key] = Entry{Key: key, Candidates: stored, FetchedAt: r.now().UTC()}
	r.pending++
	due := r.flushEvery > 0 && r.pending >= r.flushEvery
	r.mu.Unlock()

	if due {
		if err := r.Flush(); err != nil {
			r.log.Warn("cache flush failed", "path", r.path, "error", err)
		}
	}
}

// Disable turns off reads and writes for the rest of the run. Nothing is
// flushed afterwards.
func (r *Results) Disable() {
	r.disabled.Store(true)
}

// Disabled reports whether Disable was called.
func (r *Results) Disabled() bool {
	return r.disabled.Load()
}

// Len returns the number of cached queries.
func (r *Results) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Path returns the backing file.
func (r *Results) Path() string {
	return r.path
}

// Flush writes pending entries to disk atomically under an advisory file
// lock.
func (r *Results) Flush() error {
	if r.disabled.Load() {
		return nil
	}

	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	if r.pending == 0 {
		r.mu.Unlock()
		return nil
	}
	data, err := json.MarshalIndent(fileFormat{Version: fileVersion, Entries: r.entries}, "", "  ")
	flushed := r.pending
	r.pending = 0
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	if err := writeLocked(r.path, data); err != nil {
		r.mu.Lock()
		r.pending += flushed
		r.mu.Unlock()
		return err
	}
	return nil
}

// writeLocked replaces path with data while holding an advisory lock on
// path.lock.
func writeLocked(path string, data []byte) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return writeFileAtomic(path, data)
}

// Close flushes the store.
func (r *Results) Close() error {
	return r.Flush()
}

// Clear drops every entry and removes the backing file.
func (r *Results) Clear() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()
	r.mu.Lock()
	r.entries = make(map[string]Entry)
	r.pending = 0
	r.mu.Unlock()
	return Remove(r.path)
}

// Remove deletes a cache file and its lock file. Missing files are ignored.
func Remove(path string) error {
	for _, p := range []string{path, path + ".lock"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
