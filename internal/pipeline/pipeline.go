// file: internal/pipeline/pipeline.go
// version: 1.0.0
// guid: 6e058ebf-4099-45b1-9995-708707de585b

// Package pipeline resolves and tags a batch of MP3 files. Each file moves
// through ledger check, identity parsing, cache or catalog lookup,
// candidate selection, tag merge, tag write and ledger update.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/walsoup/MusicMetadataFetcher/internal/ledger"
	"github.com/walsoup/MusicMetadataFetcher/internal/merge"
	"github.com/walsoup/MusicMetadataFetcher/internal/metrics"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
	"github.com/walsoup/MusicMetadataFetcher/internal/normalize"
	"github.com/walsoup/MusicMetadataFetcher/internal/parser"
)

// DefaultWorkers is the worker pool size used when none is configured.
const DefaultWorkers = 4

// Status is the user-facing classification of one processed file.
type Status string

const (
	StatusMatched  Status = "matched"
	StatusNoMatch  Status = "no-match"
	StatusPolicy   Status = "policy"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// FileResult describes what happened to one file.
type FileResult struct {
	Path     string
	Status   Status
	Outcome  models.Outcome // recorded ledger outcome, empty when not recorded
	Identity models.ParsedIdentity
	Match    models.MatchResult
	Written  bool
	Err      error
	Duration time.Duration
}

// Summary counts the results of a run.
type Summary struct {
	Total    int
	Matched  int
	NoMatch  int
	Policy   int
	Skipped  int
	Failed   int
	Canceled int
	Written  int
	// Failures lists failed files in discovery order.
	Failures []FileResult
}

func (s *Summary) add(r FileResult) {
	s.Total++
	if r.Written {
		s.Written++
	}
	switch r.Status {
	case StatusMatched:
		s.Matched++
	case StatusNoMatch:
		s.NoMatch++
	case StatusPolicy:
		s.Policy++
	case StatusSkipped:
		s.Skipped++
	case StatusCanceled:
		s.Canceled++
	default:
		s.Failed++
		s.Failures = append(s.Failures, r)
	}
}

// Options controls a run.
type Options struct {
	Merge   merge.Options
	Workers int
	// RunID tags ledger entries. Empty generates one.
	RunID string
}

// Deps are the injected collaborators. Tags, Selector and Ledger are
// required, Catalog is required unless the policy never looks tracks up.
// Every other field is optional; nil disables it.
type Deps struct {
	Tags     TagIO
	Catalog  Catalog
	Selector Selector
	Ledger   Ledger
	Cache    Cache
	Genres   GenreSource
	Covers   CoverFetcher
	Cleanup  CleanupProvider
	Enricher EnrichmentProvider
	Lyrics   LyricsProvider
	Reporter Reporter
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// Processor runs the pipeline over a list of files.
type Processor struct {
	deps  Deps
	opts  Options
	log   *slog.Logger
	now   func() time.Time
	repMu sync.Mutex
}

// New validates deps and returns a Processor.
func New(deps Deps, opts Options) (*Processor, error) {
	if deps.Tags == nil {
		return nil, errors.New("pipeline: tag reader/writer is required")
	}
	if deps.Selector == nil {
		return nil, errors.New("pipeline: selector is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("pipeline: ledger is required")
	}
	if opts.Merge.Policy == "" {
		opts.Merge.Policy = models.PolicyNormal
	}
	if needsLookup(opts.Merge.Policy) && deps.Catalog == nil {
		return nil, fmt.Errorf("pipeline: catalog is required for policy %s", opts.Merge.Policy)
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("pipeline: invalid worker count %d", opts.Workers)
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.RunID == "" {
		opts.RunID = ledger.NewRunID()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		deps: deps,
		opts: opts,
		log:  log.With("run_id", opts.RunID),
		now:  time.Now,
	}, nil
}

// RunID returns the identifier stamped on this run's ledger entries.
func (p *Processor) RunID() string {
	return p.opts.RunID
}

func needsLookup(policy models.Policy) bool {
	return policy == models.PolicyNormal || policy == models.PolicyArtOnly
}

// Run processes paths with the worker pool and returns the summary. Files
// not yet started when ctx is canceled are reported as canceled; a file
// already writing its tags finishes.
func (p *Processor) Run(ctx context.Context, paths []string) Summary {
	p.report(func(r Reporter) { r.Start(len(paths)) })

	results := make([]FileResult, len(paths))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, p.opts.Workers)

	for i, path := range paths {
		semaphore <- struct{}{} // Acquire
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release

			res := p.ProcessFile(ctx, path)
			results[idx] = res
			p.report(func(r Reporter) { r.FileDone(res) })
		}(i, path)
	}
	wg.Wait()

	var sum Summary
	for _, res := range results {
		sum.add(res)
	}
	p.log.Info("run finished",
		"total", sum.Total,
		"matched", sum.Matched,
		"no_match", sum.NoMatch,
		"policy", sum.Policy,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"canceled", sum.Canceled)
	p.report(func(r Reporter) { r.Finish(sum) })
	return sum
}

func (p *Processor) report(fn func(Reporter)) {
	if p.deps.Reporter == nil {
		return
	}
	p.repMu.Lock()
	defer p.repMu.Unlock()
	fn(p.deps.Reporter)
}

// ProcessFile runs every stage for one file. It never panics on a per-file
// failure; the error is carried in the result.
func (p *Processor) ProcessFile(ctx context.Context, path string) (res FileResult) {
	start := p.now()
	res.Path = path
	log := p.log.With("file", path)
	defer func() {
		res.Duration = p.now().Sub(start)
		p.deps.Metrics.ObserveFile(string(res.Status), res.Duration)
	}()

	if err := ctx.Err(); err != nil {
		res.Status, res.Err = StatusCanceled, err
		return res
	}

	done, err := p.deps.Ledger.IsComplete(path)
	if err != nil {
		res.Status, res.Err = StatusFailed, fmt.Errorf("ledger lookup: %w", err)
		log.Error("ledger lookup failed", "error", err)
		return res
	}
	if done {
		res.Status = StatusSkipped
		log.Debug("already processed")
		return res
	}

	existing, err := p.deps.Tags.Read(path)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		log.Error("cannot read tags", "error", err)
		return res
	}
	raw := models.RawTrack{
		Path: path,
		Stem: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Tags: existing,
	}

	final, outcome, err := p.resolve(ctx, raw, &res)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Status, res.Err = StatusCanceled, err
			return res
		}
		// The file stays unrecorded so the next run retries it.
		res.Status, res.Err = StatusFailed, err
		log.Error("lookup failed", "error", err)
		return res
	}

	if merge.Unchanged(existing, final) {
		log.Debug("tags already up to date")
	} else {
		if err := p.deps.Tags.Write(path, final); err != nil {
			res.Status, res.Err = StatusFailed, err
			log.Error("tag write failed", "error", err)
			p.record(log, path, models.OutcomeSkippedByPolicy)
			res.Outcome = models.OutcomeSkippedByPolicy
			return res
		}
		res.Written = true
	}

	p.record(log, path, outcome)
	res.Outcome = outcome
	switch outcome {
	case models.OutcomeMatched:
		res.Status = StatusMatched
	case models.OutcomeNoMatchKeptOriginal:
		res.Status = StatusNoMatch
	default:
		res.Status = StatusPolicy
	}
	return res
}

func (p *Processor) record(log *slog.Logger, path string, outcome models.Outcome) {
	err := p.deps.Ledger.Record(models.LedgerEntry{
		Path:        path,
		CompletedAt: p.now().UTC(),
		Outcome:     outcome,
		RunID:       p.opts.RunID,
	})
	if err != nil {
		log.Warn("cannot record ledger entry", "outcome", outcome, "error", err)
	}
}

// resolve produces the tag set to write and the ledger outcome for raw.
func (p *Processor) resolve(ctx context.Context, raw models.RawTrack, res *FileResult) (models.FinalTagSet, models.Outcome, error) {
	opts := p.opts.Merge
	bypass := func() (models.FinalTagSet, models.Outcome, error) {
		return merge.Merge(raw.Tags, models.NoMatch(models.NoCandidates), merge.Extras{}, opts), models.OutcomeSkippedByPolicy, nil
	}

	switch opts.Policy {
	case models.PolicyNuke, models.PolicyStripToCore:
		return bypass()
	case models.PolicyArtOnly:
		if !merge.WantsCoverArt(raw.Tags, opts) {
			return bypass()
		}
	}

	id := p.identify(ctx, raw)
	res.Identity = id

	candidates, err := p.lookup(ctx, id)
	if err != nil {
		return models.FinalTagSet{}, "", err
	}

	result := p.deps.Selector.Select(id, candidates)
	res.Match = result
	p.log.Debug("selected candidate",
		"file", raw.Path,
		"artist_guess", id.ArtistGuess,
		"title_guess", id.TitleGuess,
		"confidence", id.Confidence.String(),
		"matched", result.IsMatched(),
		"score", result.Score,
		"reason", string(result.Reason))

	extras := p.extras(ctx, raw, result)
	final := merge.Merge(raw.Tags, result, extras, opts)
	if result.IsMatched() {
		return final, models.OutcomeMatched, nil
	}
	return final, models.OutcomeNoMatchKeptOriginal, nil
}

// identify parses the identity, asking the cleanup provider only when
// neither tags nor a filename pattern produced one.
func (p *Processor) identify(ctx context.Context, raw models.RawTrack) models.ParsedIdentity {
	id := parser.Parse(raw.Stem, raw.Tags)
	if id.Confidence != models.FromFilenameHeuristic || p.deps.Cleanup == nil {
		return id
	}
	cleaned, err := p.deps.Cleanup.CleanFilename(ctx, raw.Stem)
	if err != nil {
		p.log.Debug("filename cleanup unavailable", "file", raw.Path, "error", err)
		return id
	}
	return parser.ParseCleaned(cleaned)
}

func (p *Processor) lookup(ctx context.Context, id models.ParsedIdentity) ([]models.CandidateTrack, error) {
	key := normalize.Key(id.ArtistGuess, id.TitleGuess)
	if p.deps.Cache != nil {
		if cands, ok := p.deps.Cache.Get(key); ok {
			p.deps.Metrics.IncCacheLookup(true)
			return cands, nil
		}
		p.deps.Metrics.IncCacheLookup(false)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cands, err := p.deps.Catalog.Search(ctx, id.ArtistGuess, id.TitleGuess)
	if err != nil {
		p.deps.Metrics.IncCatalogRequest("error")
		return nil, err
	}
	p.deps.Metrics.IncCatalogRequest("ok")
	if p.deps.Cache != nil {
		p.deps.Cache.Put(key, cands)
	}
	return cands, nil
}

// extras gathers genre, cover art, lyrics and enrichment for a match.
// Provider failures only cost the field they would have filled.
func (p *Processor) extras(ctx context.Context, raw models.RawTrack, result models.MatchResult) merge.Extras {
	var extras merge.Extras
	if !result.IsMatched() {
		return extras
	}
	cand := result.Candidate
	opts := p.opts.Merge
	log := p.log.With("file", raw.Path)

	if p.deps.Covers != nil && cand.CoverArtRef != "" && merge.WantsCoverArt(raw.Tags, opts) {
		pic, err := p.deps.Covers.FetchCover(ctx, cand.CoverArtRef)
		if err != nil {
			log.Warn("cover art download failed", "url", cand.CoverArtRef, "error", err)
		} else {
			extras.CoverArt = pic
		}
	}

	if opts.Policy != models.PolicyNormal {
		return extras
	}

	if cand.Genre == "" && p.deps.Genres != nil {
		genre, err := p.deps.Genres.Genre(ctx, *cand)
		if err != nil {
			log.Debug("genre lookup failed", "error", err)
		}
		cand.Genre = genre
	}

	artist := cand.Artist
	if len(cand.Artists) > 0 {
		artist = cand.Artists[0]
	}

	if p.deps.Lyrics != nil {
		text, err := p.deps.Lyrics.Lyrics(ctx, artist, cand.Title)
		if err != nil {
			log.Warn("lyrics lookup failed", "error", err)
		} else {
			extras.Lyrics = text
		}
	}

	if p.deps.Enricher != nil {
		e, err := p.deps.Enricher.Enrich(ctx, cand.Artist, cand.Title)
		if err != nil {
			log.Warn("enrichment failed", "error", err)
		} else {
			extras.Enrichment = e
		}
	}
	return extras
}
