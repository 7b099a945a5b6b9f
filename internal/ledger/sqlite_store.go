// file: internal/ledger/sqlite_store.go
// version: 1.0.0
// guid: b09b78a0-762e-4215-b9ac-87308c484281

package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// SQLiteStore implements Store using SQLite3
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite ledger at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// Workers record concurrently; one connection avoids lock contention.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

// createTables creates all required tables
func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger (
		path TEXT PRIMARY KEY,
		completed_at TEXT NOT NULL,
		outcome TEXT NOT NULL,
		run_id TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_run ON ledger(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// IsComplete reports whether path has a recorded outcome
func (s *SQLiteStore) IsComplete(path string) (bool, error) {
	abs, err := absPath(path)
	if err != nil {
		return false, err
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM ledger WHERE path = ?`, abs).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return n > 0, nil
}

// Get returns the entry for path
func (s *SQLiteStore) Get(path string) (*models.LedgerEntry, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`SELECT path, completed_at, outcome, run_id FROM ledger WHERE path = ?`, abs)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry: %w", err)
	}
	return &entry, nil
}

// Record inserts or replaces the entry for entry.Path
func (s *SQLiteStore) Record(entry models.LedgerEntry) error {
	abs, err := absPath(entry.Path)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO ledger (path, completed_at, outcome, run_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			completed_at = excluded.completed_at,
			outcome = excluded.outcome,
			run_id = excluded.run_id`,
		abs, entry.CompletedAt.UTC().Format(time.RFC3339Nano), string(entry.Outcome), entry.RunID)
	if err != nil {
		return fmt.Errorf("failed to write ledger entry: %w", err)
	}
	return nil
}

// Clear removes the entries for paths
func (s *SQLiteStore) Clear(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(paths))
	for _, path := range paths {
		abs, err := absPath(path)
		if err != nil {
			return err
		}
		args = append(args, abs)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	if _, err := s.db.Exec(`DELETE FROM ledger WHERE path IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to clear ledger entries: %w", err)
	}
	return nil
}

// ClearAll removes every ledger entry
func (s *SQLiteStore) ClearAll() error {
	if _, err := s.db.Exec(`DELETE FROM ledger`); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	return nil
}

// List returns all entries ordered by path
func (s *SQLiteStore) List() ([]models.LedgerEntry, error) {
	rows, err := s.db.Query(`SELECT path, completed_at, outcome, run_id FROM ledger ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(scanner rowScanner) (models.LedgerEntry, error) {
	var (
		entry     models.LedgerEntry
		completed string
		outcome   string
	)
	if err := scanner.Scan(&entry.Path, &completed, &outcome, &entry.RunID); err != nil {
		return entry, err
	}
	t, err := time.Parse(time.RFC3339Nano, completed)
	if err != nil {
		return entry, fmt.Errorf("invalid completed_at %q: %w", completed, err)
	}
	entry.CompletedAt = t
	entry.Outcome = models.Outcome(outcome)
	return entry, nil
}
