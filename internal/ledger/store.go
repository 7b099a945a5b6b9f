// file: internal/ledger/store.go
// version: 1.0.0
// guid: 87a3e35b-8412-4845-a9da-6f3c54e0bbd8

// Package ledger records which files have been processed so that re-runs
// skip them.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	ulid "github.com/oklog/ulid/v2"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// ErrNotFound is returned by Get when a path has no entry.
var ErrNotFound = errors.New("ledger entry not found")

// Store is a durable map from absolute file path to processing outcome.
// Implementations are safe for concurrent use.
type Store interface {
	// IsComplete reports whether path has any recorded outcome.
	IsComplete(path string) (bool, error)
	// Get returns the entry for path or ErrNotFound.
	Get(path string) (*models.LedgerEntry, error)
	// Record inserts or replaces the entry for entry.Path.
	Record(entry models.LedgerEntry) error
	// Clear removes the entries for the given paths.
	Clear(paths ...string) error
	// ClearAll removes every entry.
	ClearAll() error
	// List returns all entries ordered by path.
	List() ([]models.LedgerEntry, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
)

// Open opens the ledger store of the given type at path, creating it if
// needed. An empty type selects Pebble.
func Open(storeType, path string) (Store, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(storeType); err != nil {
			return nil, err
		}
	}

	switch storeType {
	case BackendSQLite, "sqlite3":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite ledger: %w", err)
		}
		return store, nil
	case BackendPebble, "":
		// PebbleDB is the default
		store, err := NewPebbleStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PebbleDB ledger: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s (supported: pebble, sqlite)", storeType)
	}
}

// DefaultPath returns the ledger location under the XDG data home.
func DefaultPath(storeType string) (string, error) {
	rel := "musicmetadatafetcher/ledger"
	if storeType == BackendSQLite || storeType == "sqlite3" {
		rel = "musicmetadatafetcher/ledger.db"
	}
	return xdg.DataFile(rel)
}

// Remove deletes a ledger store from disk. A missing store is not an error.
func Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove ledger %s: %w", path, err)
	}
	return nil
}

// NewRunID returns a sortable identifier for one pipeline run.
func NewRunID() string {
	return ulid.Make().String()
}

// absPath normalizes ledger keys to absolute, cleaned paths.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return abs, nil
}
