// file: internal/matcher/fuzzy.go
// version: 2.0.0
// guid: 51c59b03-0bac-4611-aa02-b97941965b0d

package matcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/walsoup/MusicMetadataFetcher/internal/normalize"
)

// Metric names a string similarity algorithm.
type Metric string

const (
	MetricLevenshtein Metric = "levenshtein"
	MetricJaroWinkler Metric = "jaro-winkler"
)

// ParseMetric validates a metric name from configuration.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricLevenshtein:
		return MetricLevenshtein, nil
	case MetricJaroWinkler:
		return MetricJaroWinkler, nil
	default:
		return "", fmt.Errorf("unknown similarity metric %q", s)
	}
}

// Similarity returns the normalized edit-distance similarity of a and b in
// [0,1]. Both inputs are folded with normalize.Fold first, so strings that
// are equal after normalization score exactly 1.
func Similarity(a, b string) float64 {
	return SimilarityWith(MetricLevenshtein, a, b)
}

// SimilarityWith is Similarity using the given metric.
func SimilarityWith(m Metric, a, b string) float64 {
	return foldedSimilarity(m, normalize.Fold(a), normalize.Fold(b))
}

func foldedSimilarity(m Metric, a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	switch m {
	case MetricJaroWinkler:
		return strutil.Similarity(a, b, metrics.NewJaroWinkler())
	default:
		longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
		dist := fuzzy.LevenshteinDistance(a, b)
		return clamp01(1 - float64(dist)/float64(longest))
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
