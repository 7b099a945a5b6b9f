// file: internal/pipeline/interfaces.go
// version: 1.0.0
// guid: 560f1ba1-a376-4035-9b80-140692d0944e

package pipeline

import (
	"context"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// TagIO reads and writes the tag block of one file.
type TagIO interface {
	Read(path string) (models.TagFields, error)
	// Write saves final all-or-nothing.
	Write(path string, final models.FinalTagSet) error
}

// Catalog searches the external track catalog.
type Catalog interface {
	Search(ctx context.Context, artist, title string) ([]models.CandidateTrack, error)
}

// GenreSource resolves a genre for a matched candidate.
type GenreSource interface {
	Genre(ctx context.Context, cand models.CandidateTrack) (string, error)
}

// CoverFetcher downloads cover art referenced by a candidate.
type CoverFetcher interface {
	FetchCover(ctx context.Context, url string) (*models.Picture, error)
}

// Cache stores catalog responses keyed by normalized query.
type Cache interface {
	Get(key string) ([]models.CandidateTrack, bool)
	Put(key string, candidates []models.CandidateTrack)
}

// Ledger tracks which files are done.
type Ledger interface {
	IsComplete(path string) (bool, error)
	Record(entry models.LedgerEntry) error
}

// Selector picks the best candidate for a parsed identity.
type Selector interface {
	Select(parsed models.ParsedIdentity, candidates []models.CandidateTrack) models.MatchResult
}

// CleanupProvider turns a noisy filename stem into a cleaner one.
type CleanupProvider interface {
	CleanFilename(ctx context.Context, stem string) (string, error)
}

// EnrichmentProvider estimates audio attributes for a track.
type EnrichmentProvider interface {
	Enrich(ctx context.Context, artist, title string) (*models.Enrichment, error)
}

// LyricsProvider returns the lyrics of a track, or "" when unknown.
type LyricsProvider interface {
	Lyrics(ctx context.Context, artist, title string) (string, error)
}

// Reporter receives each file's result as it completes. Calls are
// serialized.
type Reporter interface {
	Start(total int)
	FileDone(res FileResult)
	Finish(sum Summary)
}
