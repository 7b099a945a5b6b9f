// file: internal/models/track.go
// version: 1.0.0
// guid: a1cf17f0-f284-4a5f-b733-0e301eed4e95

package models

import (
	"bytes"
	"time"
)

// Picture is an embedded cover image.
type Picture struct {
	MIMEType    string `json:"mime_type"`
	Description string `json:"description,omitempty"`
	Data        []byte `json:"-"`
}

// Equal reports whether two pictures carry the same image.
func (p *Picture) Equal(other *Picture) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.MIMEType == other.MIMEType && bytes.Equal(p.Data, other.Data)
}

// TagFields is the fixed set of tag fields the pipeline reads and writes.
// An empty string or nil picture means the field is absent.
type TagFields struct {
	Artist      string   `json:"artist,omitempty"`
	Title       string   `json:"title,omitempty"`
	Album       string   `json:"album,omitempty"`
	AlbumArtist string   `json:"album_artist,omitempty"`
	Genre       string   `json:"genre,omitempty"`
	Year        string   `json:"year,omitempty"`
	TrackNumber string   `json:"track_number,omitempty"`
	Comment     string   `json:"comment,omitempty"`
	Lyrics      string   `json:"lyrics,omitempty"`
	CoverArt    *Picture `json:"cover_art,omitempty"`
}

// HasCoverArt reports whether an image is present.
func (t TagFields) HasCoverArt() bool {
	return t.CoverArt != nil && len(t.CoverArt.Data) > 0
}

// Equal compares every field, including the cover image bytes.
func (t TagFields) Equal(other TagFields) bool {
	return t.Artist == other.Artist &&
		t.Title == other.Title &&
		t.Album == other.Album &&
		t.AlbumArtist == other.AlbumArtist &&
		t.Genre == other.Genre &&
		t.Year == other.Year &&
		t.TrackNumber == other.TrackNumber &&
		t.Comment == other.Comment &&
		t.Lyrics == other.Lyrics &&
		t.CoverArt.Equal(other.CoverArt)
}

// RawTrack is the snapshot of a file taken before it is processed.
type RawTrack struct {
	Path string
	Stem string
	Tags TagFields
}

// ConfidenceHint records how a ParsedIdentity was derived.
type ConfidenceHint int

const (
	FromTags ConfidenceHint = iota
	FromFilenamePattern
	FromFilenameHeuristic
	FromAICleanup
)

func (c ConfidenceHint) String() string {
	switch c {
	case FromTags:
		return "tags"
	case FromFilenamePattern:
		return "filename-pattern"
	case FromFilenameHeuristic:
		return "filename-heuristic"
	case FromAICleanup:
		return "ai-cleanup"
	default:
		return "unknown"
	}
}

// ParsedIdentity is the best guess at a track's artist and title before lookup.
type ParsedIdentity struct {
	ArtistGuess string
	TitleGuess  string
	Confidence  ConfidenceHint
}

// CandidateTrack is a single track record returned by the catalog.
type CandidateTrack struct {
	Artist         string   `json:"artist"`
	Artists        []string `json:"artists,omitempty"`
	ArtistIDs      []string `json:"artist_ids,omitempty"`
	AlbumArtistIDs []string `json:"album_artist_ids,omitempty"`
	Title          string   `json:"title"`
	Album          string   `json:"album,omitempty"`
	AlbumArtist    string   `json:"album_artist,omitempty"`
	Genre          string   `json:"genre,omitempty"`
	Year           string   `json:"year,omitempty"`
	TrackNumber    string   `json:"track_number,omitempty"`
	CatalogID      string   `json:"catalog_id"`
	Popularity     int      `json:"popularity"`
	CoverArtRef    string   `json:"cover_art_ref,omitempty"`
}

// NoMatchReason explains why no candidate was accepted.
type NoMatchReason string

const (
	NoCandidates  NoMatchReason = "noCandidates"
	LowConfidence NoMatchReason = "lowConfidence"
)

// MatchResult is either a matched candidate with its score or a NoMatch reason.
type MatchResult struct {
	Candidate *CandidateTrack
	Score     float64
	Reason    NoMatchReason
}

// Matched builds a successful MatchResult.
func Matched(c CandidateTrack, score float64) MatchResult {
	return MatchResult{Candidate: &c, Score: score}
}

// NoMatch builds an unsuccessful MatchResult.
func NoMatch(reason NoMatchReason) MatchResult {
	return MatchResult{Reason: reason}
}

// IsMatched reports whether a candidate was accepted.
func (m MatchResult) IsMatched() bool {
	return m.Candidate != nil
}

// Enrichment holds the optional audio attribute estimates.
type Enrichment struct {
	BPM          int    `json:"bpm,omitempty"`
	Key          string `json:"key,omitempty"`
	Mood         string `json:"mood,omitempty"`
	Danceability int    `json:"danceability,omitempty"`
	Popularity   int    `json:"popularity,omitempty"`
}

// FinalTagSet is the complete tag state to write to a file.
type FinalTagSet struct {
	Tags       TagFields
	Enrichment *Enrichment
	// Exclusive drops every frame that Tags does not represent.
	Exclusive bool
}

// Outcome is the ledger classification of a processed file.
type Outcome string

const (
	OutcomeMatched             Outcome = "matched"
	OutcomeNoMatchKeptOriginal Outcome = "noMatchKeptOriginal"
	OutcomeSkippedByPolicy     Outcome = "skippedByPolicy"
)

// LedgerEntry records the processing outcome for one file.
type LedgerEntry struct {
	Path        string    `json:"path" yaml:"path"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
	Outcome     Outcome   `json:"outcome" yaml:"outcome"`
	RunID       string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// Policy selects which fields the merge engine writes.
type Policy string

const (
	PolicyNormal      Policy = "normal"
	PolicyArtOnly     Policy = "artOnly"
	PolicyStripToCore Policy = "stripToCore"
	PolicyNuke        Policy = "nuke"
)

// ParsePolicy accepts the canonical names and their kebab-case CLI forms.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "normal":
		return PolicyNormal, true
	case "artOnly", "art-only":
		return PolicyArtOnly, true
	case "stripToCore", "strip-to-core":
		return PolicyStripToCore, true
	case "nuke":
		return PolicyNuke, true
	default:
		return "", false
	}
}
