// file: internal/normalize/normalize.go
// version: 1.0.0
// guid: 316b644a-2178-4f9a-b3e3-b6a5e6815ee2

// Package normalize holds the text canonicalization shared by the cache key
// and the similarity scorer.
//
// Fold applies, in order:
//   - Unicode NFD decomposition with combining marks removed ("é" -> "e")
//   - full Unicode case folding
//   - removal of punctuation and symbol runes ("R.E.M." -> "rem")
//   - every other non letter/digit rune becomes a space
//   - runs of whitespace collapse to one space, ends trimmed
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keySeparator joins the artist and title halves of a cache key. Fold never
// emits it, so splitting a key is unambiguous.
const keySeparator = "|"

// Fold returns the canonical comparison form of s.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped without introducing a word break
		default:
			space = true
		}
	}
	return b.String()
}

// Key derives the cache key for an (artist, title) query.
func Key(artist, title string) string {
	return Fold(artist) + keySeparator + Fold(title)
}

// NormalizeKey re-canonicalizes an existing key. It is idempotent:
// NormalizeKey(Key(a, t)) == Key(a, t).
func NormalizeKey(key string) string {
	artist, title, found := strings.Cut(key, keySeparator)
	if !found {
		return Key("", key)
	}
	return Key(artist, title)
}
