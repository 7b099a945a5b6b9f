// file: internal/catalog/genre.go
// version: 1.0.0
// guid: aac94a86-4843-4162-8f06-99ea26dcb579

package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// genreRules maps substrings of granular catalog labels to a top-level
// genre. Order matters: the first rule with a matching substring wins.
var genreRules = []struct {
	needles   []string
	canonical string
}{
	{[]string{"hip hop", "hip-hop", "rap", "trap"}, "Hip-Hop"},
	{[]string{"r&b", "rnb", "neo-soul"}, "R&B"},
	{[]string{"pop", "synthpop", "electropop", "dance pop"}, "Pop"},
	{[]string{"metal"}, "Metal"},
	{[]string{"punk"}, "Punk"},
	{[]string{"indie"}, "Indie"},
	{[]string{"rock", "alt rock", "classic rock", "hard rock"}, "Rock"},
	{[]string{"edm", "electronic", "house", "techno", "trance", "dubstep", "drum and bass", "dnb"}, "Electronic"},
	{[]string{"classical", "orchestra", "symphony", "opera", "choir", "choral", "baroque", "romantic"}, "Classical"},
	{[]string{"jazz", "bebop", "swing", "fusion"}, "Jazz"},
	{[]string{"blues"}, "Blues"},
	{[]string{"country"}, "Country"},
	{[]string{"folk"}, "Folk"},
	{[]string{"latin", "reggaeton", "salsa", "bachata", "cumbia", "tango"}, "Latin"},
	{[]string{"afrobeats", "afrobeat", "afro"}, "Afrobeats"},
	{[]string{"k-pop", "kpop"}, "K-Pop"},
	{[]string{"j-pop", "jpop"}, "J-Pop"},
	{[]string{"soundtrack", "score"}, "Soundtrack"},
	{[]string{"lo-fi", "lofi"}, "Lo-Fi"},
	{[]string{"ambient"}, "Ambient"},
	{[]string{"soul"}, "Soul"},
	{[]string{"gospel"}, "Gospel"},
	{[]string{"reggae", "dancehall"}, "Reggae"},
	{[]string{"world"}, "World"},
}

// CanonicalGenre maps a catalog or community genre label to a top-level
// genre name. Unknown labels are returned in title case.
func CanonicalGenre(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	lower := strings.ToLower(label)
	for _, rule := range genreRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.canonical
			}
		}
	}
	return cases.Title(language.Und).String(lower)
}

type weightedLabel struct {
	label  string
	weight int
}

// pickGenre canonicalizes every label, sums weights per canonical genre and
// returns the heaviest. Ties resolve alphabetically.
func pickGenre(labels []weightedLabel) string {
	totals := make(map[string]int)
	for _, l := range labels {
		if l.weight <= 0 {
			continue
		}
		if g := CanonicalGenre(l.label); g != "" {
			totals[g] += l.weight
		}
	}
	if len(totals) == 0 {
		return ""
	}
	names := make([]string, 0, len(totals))
	for g := range totals {
		names = append(names, g)
	}
	sort.Slice(names, func(i, j int) bool {
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})
	return names[0]
}
