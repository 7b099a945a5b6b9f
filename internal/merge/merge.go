// file: internal/merge/merge.go
// version: 1.0.0
// guid: 8c4ad50e-909b-471d-8929-1f0755a790ba

// Package merge decides the final tag state of a file from its existing
// tags, the match result and the active policy.
package merge

import (
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// Options are the policy switches that shape a merge.
type Options struct {
	Policy        models.Policy
	ForceArt      bool
	NoArt         bool
	StripComments bool
}

// Extras carries data fetched alongside the match. Nil or empty values
// mean the data was not fetched or not found.
type Extras struct {
	CoverArt   *models.Picture
	Lyrics     string
	Enrichment *models.Enrichment
}

// Merge computes the tag set to write. It is pure: the same inputs always
// produce the same output.
func Merge(existing models.TagFields, result models.MatchResult, extras Extras, opts Options) models.FinalTagSet {
	switch opts.Policy {
	case models.PolicyNuke:
		return models.FinalTagSet{Exclusive: true}

	case models.PolicyStripToCore:
		return models.FinalTagSet{
			Tags: models.TagFields{
				Artist: existing.Artist,
				Title:  existing.Title,
			},
			Exclusive: true,
		}

	case models.PolicyArtOnly:
		tags := existing
		tags.CoverArt = applyArt(existing.CoverArt, extras.CoverArt, opts)
		return models.FinalTagSet{Tags: tags}
	}

	tags := existing
	var enrichment *models.Enrichment
	if result.IsMatched() {
		overlayCandidate(&tags, *result.Candidate)
		if extras.Lyrics != "" {
			tags.Lyrics = extras.Lyrics
		}
		if extras.Enrichment != nil {
			e := *extras.Enrichment
			enrichment = &e
		}
		if opts.StripComments {
			tags.Comment = ""
		}
	}
	tags.CoverArt = applyArt(existing.CoverArt, extras.CoverArt, opts)

	return models.FinalTagSet{Tags: tags, Enrichment: enrichment}
}

// overlayCandidate copies every non-empty candidate field over the tags.
func overlayCandidate(tags *models.TagFields, c models.CandidateTrack) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&tags.Artist, c.Artist)
	set(&tags.Title, c.Title)
	set(&tags.Album, c.Album)
	set(&tags.AlbumArtist, c.AlbumArtist)
	set(&tags.Genre, c.Genre)
	set(&tags.Year, c.Year)
	set(&tags.TrackNumber, c.TrackNumber)
}

func applyArt(existing, supplied *models.Picture, opts Options) *models.Picture {
	hasExisting := existing != nil && len(existing.Data) > 0
	switch {
	case opts.NoArt:
		return existing
	case hasExisting && !opts.ForceArt:
		return existing
	case supplied != nil && len(supplied.Data) > 0:
		return supplied
	default:
		return existing
	}
}

// WantsCoverArt reports whether a downloaded cover would be used for a
// file with the given tags.
func WantsCoverArt(existing models.TagFields, opts Options) bool {
	switch opts.Policy {
	case models.PolicyNuke, models.PolicyStripToCore:
		return false
	}
	if opts.NoArt {
		return false
	}
	return !existing.HasCoverArt() || opts.ForceArt
}

// Unchanged reports whether writing final would leave the file as it is.
// Exclusive sets and enrichment always count as a change.
func Unchanged(existing models.TagFields, final models.FinalTagSet) bool {
	if final.Exclusive || final.Enrichment != nil {
		return false
	}
	return existing.Equal(final.Tags)
}
