// file: internal/matcher/matcher.go
// version: 2.0.0
// guid: 1f2a3b4c-5d6e-7f8a-9b0c-1d2e3f4a5b6c

package matcher

import (
	"fmt"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
	"github.com/walsoup/MusicMetadataFetcher/internal/normalize"
)

// Defaults for the blended score.
const (
	DefaultTitleWeight  = 0.6
	DefaultArtistWeight = 0.4
	DefaultThreshold    = 0.72
)

// scoreEpsilon treats scores this close as tied.
const scoreEpsilon = 1e-9

// Selector picks the best catalog candidate for a parsed identity.
type Selector struct {
	TitleWeight  float64
	ArtistWeight float64
	Threshold    float64
	Metric       Metric
}

// NewSelector returns a Selector with the default weights and threshold.
func NewSelector() *Selector {
	return &Selector{
		TitleWeight:  DefaultTitleWeight,
		ArtistWeight: DefaultArtistWeight,
		Threshold:    DefaultThreshold,
		Metric:       MetricLevenshtein,
	}
}

// Validate checks that weights and threshold are usable.
func (s *Selector) Validate() error {
	if s.TitleWeight < 0 || s.ArtistWeight < 0 {
		return fmt.Errorf("matcher weights must be non-negative")
	}
	if s.TitleWeight+s.ArtistWeight == 0 {
		return fmt.Errorf("matcher weights must not both be zero")
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("matcher threshold %.2f outside [0,1]", s.Threshold)
	}
	if _, err := ParseMetric(string(s.Metric)); err != nil {
		return err
	}
	return nil
}

// Score computes the blended similarity of one candidate against the guess.
// With no artist guess the title similarity is the whole score.
func (s *Selector) Score(parsed models.ParsedIdentity, c models.CandidateTrack) float64 {
	title := normalize.Fold(parsed.TitleGuess)
	artist := normalize.Fold(parsed.ArtistGuess)

	titleSim := foldedSimilarity(s.Metric, title, normalize.Fold(c.Title))
	if artist == "" {
		return titleSim
	}

	artistSim := foldedSimilarity(s.Metric, artist, normalize.Fold(c.Artist))
	for _, name := range c.Artists {
		artistSim = max(artistSim, foldedSimilarity(s.Metric, artist, normalize.Fold(name)))
	}

	total := s.TitleWeight + s.ArtistWeight
	return clamp01((s.TitleWeight*titleSim + s.ArtistWeight*artistSim) / total)
}

// Select scores every candidate and returns the winner if it clears the
// threshold. Ties go to higher popularity, then to the earlier catalog
// position.
func (s *Selector) Select(parsed models.ParsedIdentity, candidates []models.CandidateTrack) models.MatchResult {
	if len(candidates) == 0 {
		return models.NoMatch(models.NoCandidates)
	}

	best := -1
	bestScore := 0.0
	for i, c := range candidates {
		score := s.Score(parsed, c)
		if best < 0 || beats(score, c.Popularity, bestScore, candidates[best].Popularity) {
			best = i
			bestScore = score
		}
	}

	if bestScore+scoreEpsilon < s.Threshold {
		return models.NoMatch(models.LowConfidence)
	}
	return models.Matched(candidates[best], bestScore)
}

// beats reports whether a later candidate displaces the current best.
// Index order is implicit: an equal later candidate never wins.
func beats(score float64, popularity int, bestScore float64, bestPopularity int) bool {
	if score > bestScore+scoreEpsilon {
		return true
	}
	if score < bestScore-scoreEpsilon {
		return false
	}
	return popularity > bestPopularity
}
