// file: internal/ledger/pebble_store.go
// version: 1.0.0
// guid: 694b8e39-c401-47d5-a350-dd7c30afe7b2

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble/v2"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// PebbleKeyPrefix prefixes every ledger key in a Pebble store.
const PebbleKeyPrefix = "ledger:path:"

// PebbleStore implements Store using PebbleDB (LSM key-value store)
//
// Key Schema:
// - ledger:path:<abs path>     -> LedgerEntry JSON
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens or creates a PebbleDB ledger in the directory path
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open PebbleDB: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database
func (p *PebbleStore) Close() error {
	return p.db.Close()
}

func pebbleKey(abs string) []byte {
	return []byte(PebbleKeyPrefix + abs)
}

// IsComplete reports whether path has a recorded outcome
func (p *PebbleStore) IsComplete(path string) (bool, error) {
	_, err := p.Get(path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the entry for path
func (p *PebbleStore) Get(path string) (*models.LedgerEntry, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, err
	}

	value, closer, err := p.db.Get(pebbleKey(abs))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry: %w", err)
	}
	defer closer.Close()

	var entry models.LedgerEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entry for %s: %w", abs, err)
	}
	return &entry, nil
}

// Record inserts or replaces the entry for entry.Path
func (p *PebbleStore) Record(entry models.LedgerEntry) error {
	abs, err := absPath(entry.Path)
	if err != nil {
		return err
	}
	entry.Path = abs

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode ledger entry: %w", err)
	}
	if err := p.db.Set(pebbleKey(abs), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write ledger entry: %w", err)
	}
	return nil
}

// Clear removes the entries for paths
func (p *PebbleStore) Clear(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	batch := p.db.NewBatch()
	defer batch.Close()

	for _, path := range paths {
		abs, err := absPath(path)
		if err != nil {
			return err
		}
		if err := batch.Delete(pebbleKey(abs), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// ClearAll removes every ledger entry
func (p *PebbleStore) ClearAll() error {
	lower, upper := []byte(PebbleKeyPrefix), []byte("ledger:path;")
	if err := p.db.DeleteRange(lower, upper, pebble.Sync); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	return nil
}

// List returns all entries ordered by path
func (p *PebbleStore) List() ([]models.LedgerEntry, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(PebbleKeyPrefix),
		UpperBound: []byte("ledger:path;"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []models.LedgerEntry
	for iter.First(); iter.Valid(); iter.Next() {
		var entry models.LedgerEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode ledger entry %s: %w", iter.Key(), err)
		}
		entries = append(entries, entry)
	}
	return entries, iter.Error()
}
