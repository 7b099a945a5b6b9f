// file: internal/tagger/tagger.go
// version: 1.0.0
// guid: be936c13-4005-4fc4-9259-640cbb699820

package tagger

import (
	"github.com/walsoup/MusicMetadataFetcher/internal/fileops"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// Tagger reads and writes MP3 tags, protecting writes with a backup.
type Tagger struct {
	backup fileops.OperationConfig
}

// New returns a Tagger using the given backup settings.
func New(backup fileops.OperationConfig) *Tagger {
	return &Tagger{backup: backup}
}

// Read returns the current tag fields of path.
func (t *Tagger) Read(path string) (models.TagFields, error) {
	return ReadTags(path)
}

// Write saves final to path.
func (t *Tagger) Write(path string, final models.FinalTagSet) error {
	return WriteTags(path, final, t.backup)
}
