// file: internal/parser/filename.go
// version: 1.0.0
// guid: 20eef52e-a5f9-4912-bf83-d48ac8fc1bdb

// Package parser derives an (artist, title) guess from a file's existing
// tags or, failing that, from its filename stem.
package parser

import (
	"regexp"
	"strings"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// noiseWords is the alternation of tokens that never carry track identity.
const noiseWords = `official(?:\s+(?:music|lyrics?|hd|4k))?(?:\s+(?:video|audio|visuali[sz]er))?` +
	`|(?:lyrics?|lyric\s+video)` +
	`|(?:hd|hq|4k|1080p|720p|480p)(?:\s+(?:video|audio))?` +
	`|audio|video|visuali[sz]er|explicit|clean(?:\s+version)?` +
	`|remaster(?:ed)?(?:\s+\d{4})?|\d{4}\s+remaster(?:ed)?` +
	`|free\s+download|download|mp3|\d{2,3}\s*kbps` +
	`|(?:www\.)?[a-z0-9-]+\.(?:com|net|org|io|me|cc|to|ru|info|biz|co)`

var (
	// Structural patterns, tried in order.
	reHyphen = regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`)
	reEnDash = regexp.MustCompile(`^(.+?)\s*–\s*(.+)$`)
	reParen  = regexp.MustCompile(`^(.+?)\s*\(([^()]+)\)\s*$`)

	reNoiseOnly      = regexp.MustCompile(`(?i)^\s*(?:` + noiseWords + `)\s*$`)
	reNotArtist      = regexp.MustCompile(`(?i)^(?:feat\.?|ft\.?|featuring|with|prod\.?)\s|\b(?:remix|mix|edit|version|live|acoustic|instrumental|cover|demo)\b`)
	reNoiseGroup     = regexp.MustCompile(`(?i)\s*[\(\[\{]\s*(?:` + noiseWords + `)\s*[\)\]\}]`)
	reSquareOrBraces = regexp.MustCompile(`\s*(?:\[[^\]]*\]|\{[^}]*\})`)
	reSiteTag        = regexp.MustCompile(`(?i)\b(?:www\.)?[a-z0-9-]+\.(?:com|net|org|io|me|cc|to|ru|info|biz)\b`)
	reTrackPrefix    = regexp.MustCompile(`^\d{1,3}\s*[-_.)]\s*`)
	reSpaces         = regexp.MustCompile(`\s{2,}`)
)

// separatorChars are trimmed from both ends of a heuristic title.
const separatorChars = " \t-_.|~:;,–—"

// Parse returns the best identity guess for a file. Existing tags win when
// they carry both artist and title; otherwise the stem is parsed.
func Parse(stem string, existing models.TagFields) models.ParsedIdentity {
	artist := strings.TrimSpace(existing.Artist)
	title := strings.TrimSpace(existing.Title)
	if artist != "" && title != "" {
		return models.ParsedIdentity{ArtistGuess: artist, TitleGuess: title, Confidence: models.FromTags}
	}
	return parseStem(stem)
}

// ParseCleaned parses a stem produced by a cleanup provider. The result is
// always marked FromAICleanup.
func ParseCleaned(cleanedStem string) models.ParsedIdentity {
	id := parseStem(cleanedStem)
	id.Confidence = models.FromAICleanup
	return id
}

func parseStem(stem string) models.ParsedIdentity {
	if artist, title, ok := matchPattern(stem); ok {
		return models.ParsedIdentity{ArtistGuess: artist, TitleGuess: title, Confidence: models.FromFilenamePattern}
	}
	return models.ParsedIdentity{TitleGuess: StripNoise(stem), Confidence: models.FromFilenameHeuristic}
}

func matchPattern(stem string) (artist, title string, ok bool) {
	if m := reHyphen.FindStringSubmatch(stem); m != nil {
		if a, t := strings.TrimSpace(m[1]), strings.TrimSpace(m[2]); a != "" && t != "" {
			return a, t, true
		}
	}
	if m := reEnDash.FindStringSubmatch(stem); m != nil {
		if a, t := strings.TrimSpace(m[1]), strings.TrimSpace(m[2]); a != "" && t != "" {
			return a, t, true
		}
	}
	if m := reParen.FindStringSubmatch(stem); m != nil && !reNoiseOnly.MatchString(m[2]) && !reNotArtist.MatchString(m[2]) {
		if t, a := strings.TrimSpace(m[1]), strings.TrimSpace(m[2]); a != "" && t != "" {
			return a, t, true
		}
	}
	return "", "", false
}

// StripNoise removes bracketed noise, site tags, leading track numbers and
// stray separators from a stem. If nothing would remain the trimmed stem is
// returned unchanged.
func StripNoise(stem string) string {
	s := strings.ReplaceAll(stem, "_", " ")
	s = reNoiseGroup.ReplaceAllString(s, " ")
	s = reSquareOrBraces.ReplaceAllString(s, " ")
	s = reSiteTag.ReplaceAllString(s, " ")
	s = reTrackPrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = reSpaces.ReplaceAllString(s, " ")
	s = strings.Trim(s, separatorChars)
	if s == "" {
		return strings.TrimSpace(stem)
	}
	return s
}
