// file: internal/pipeline/pipeline_test.go
// version: 1.0.0
// guid: 89e9d8f2-38de-407d-89f3-213f5d8d8820

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walsoup/MusicMetadataFetcher/internal/catalog"
	"github.com/walsoup/MusicMetadataFetcher/internal/logging"
	"github.com/walsoup/MusicMetadataFetcher/internal/matcher"
	"github.com/walsoup/MusicMetadataFetcher/internal/merge"
	"github.com/walsoup/MusicMetadataFetcher/internal/metrics"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
	"github.com/walsoup/MusicMetadataFetcher/internal/normalize"
)

type fakeTags struct {
	mu       sync.Mutex
	files    map[string]models.TagFields
	written  map[string]models.FinalTagSet
	readErr  map[string]error
	writeErr map[string]error
}

func newFakeTags() *fakeTags {
	return &fakeTags{
		files:    map[string]models.TagFields{},
		written:  map[string]models.FinalTagSet{},
		readErr:  map[string]error{},
		writeErr: map[string]error{},
	}
}

func (f *fakeTags) Read(path string) (models.TagFields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[path]; err != nil {
		return models.TagFields{}, err
	}
	return f.files[path], nil
}

func (f *fakeTags) Write(path string, final models.FinalTagSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr[path]; err != nil {
		return err
	}
	f.written[path] = final
	f.files[path] = final.Tags
	return nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	byTitle map[string][]models.CandidateTrack
	errs    map[string]error
	queries []string
}

func (f *fakeCatalog) Search(_ context.Context, artist, title string) ([]models.CandidateTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, artist+"|"+title)
	if err := f.errs[title]; err != nil {
		return nil, err
	}
	return f.byTitle[title], nil
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]models.LedgerEntry
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]models.LedgerEntry{}}
}

func (l *fakeLedger) IsComplete(path string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[path]
	return ok, nil
}

func (l *fakeLedger) Record(e models.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[e.Path] = e
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]models.CandidateTrack
}

func (c *fakeCache) Get(key string) ([]models.CandidateTrack, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *fakeCache) Put(key string, cands []models.CandidateTrack) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cands
}

type fakeCleanup struct {
	answer string
	seen   []string
}

func (f *fakeCleanup) CleanFilename(_ context.Context, stem string) (string, error) {
	f.seen = append(f.seen, stem)
	return f.answer, nil
}

type stubProviders struct{}

func (stubProviders) Lyrics(context.Context, string, string) (string, error) {
	return "[Verse]\nla la", nil
}

func (stubProviders) Enrich(context.Context, string, string) (*models.Enrichment, error) {
	return &models.Enrichment{BPM: 120, Mood: "Happy"}, nil
}

func (stubProviders) Genre(context.Context, models.CandidateTrack) (string, error) {
	return "Pop", nil
}

func (stubProviders) FetchCover(context.Context, string) (*models.Picture, error) {
	return &models.Picture{MIMEType: "image/jpeg", Data: []byte{1, 2, 3}}, nil
}

var hozier = models.CandidateTrack{
	Artist:      "Hozier",
	Artists:     []string{"Hozier"},
	Title:       "Take Me to Church",
	Album:       "Hozier",
	Year:        "2014",
	TrackNumber: "1/13",
	CatalogID:   "7dS5EaCoMnN7DzlpT6aRn2",
	Popularity:  80,
	CoverArtRef: "https://img/cover.jpg",
}

type harness struct {
	tags    *fakeTags
	catalog *fakeCatalog
	ledger  *fakeLedger
	cache   *fakeCache
}

func newHarness() *harness {
	return &harness{
		tags: newFakeTags(),
		catalog: &fakeCatalog{
			byTitle: map[string][]models.CandidateTrack{"Take Me to Church": {hozier}},
			errs:    map[string]error{},
		},
		ledger: newFakeLedger(),
		cache:  &fakeCache{data: map[string][]models.CandidateTrack{}},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Tags:     h.tags,
		Catalog:  h.catalog,
		Selector: matcher.NewSelector(),
		Ledger:   h.ledger,
		Cache:    h.cache,
		Logger:   logging.Discard(),
	}
}

func (h *harness) processor(t *testing.T, deps Deps, opts Options) *Processor {
	t.Helper()
	p, err := New(deps, opts)
	require.NoError(t, err)
	return p
}

func TestRunMatchesWritesAndRecords(t *testing.T) {
	h := newHarness()
	path := "/music/Hozier - Take Me to Church.mp3"
	h.tags.files[path] = models.TagFields{Comment: "ripped by someone"}

	p := h.processor(t, h.deps(), Options{Merge: merge.Options{Policy: models.PolicyNormal, StripComments: true}, RunID: "run-1"})
	sum := p.Run(context.Background(), []string{path})

	assert.Equal(t, 1, sum.Matched)
	assert.Equal(t, 1, sum.Written)
	final := h.tags.written[path]
	assert.Equal(t, "Hozier", final.Tags.Artist)
	assert.Equal(t, "Take Me to Church", final.Tags.Title)
	assert.Equal(t, "2014", final.Tags.Year)
	assert.Empty(t, final.Tags.Comment)
	assert.False(t, final.Exclusive)

	entry := h.ledger.entries[path]
	assert.Equal(t, models.OutcomeMatched, entry.Outcome)
	assert.Equal(t, "run-1", entry.RunID)
	assert.False(t, entry.CompletedAt.IsZero())
}

func TestSecondRunSkipsRecordedFiles(t *testing.T) {
	h := newHarness()
	paths := []string{"/m/Hozier - Take Me to Church.mp3", "/m/Unknown - Nothing Here.mp3"}

	p := h.processor(t, h.deps(), Options{})
	first := p.Run(context.Background(), paths)
	assert.Equal(t, 1, first.Matched)
	assert.Equal(t, 1, first.NoMatch)
	callsAfterFirst := h.catalog.calls()

	second := p.Run(context.Background(), paths)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, callsAfterFirst, h.catalog.calls())
}

func TestCatalogFailureDoesNotStopRun(t *testing.T) {
	h := newHarness()
	bad := "/m/A - Broken.mp3"
	good := "/m/Hozier - Take Me to Church.mp3"
	h.catalog.errs["Broken"] = fmt.Errorf("%w: 503", catalog.ErrCatalogUnavailable)

	rec := metrics.NewRecorder()
	deps := h.deps()
	deps.Metrics = rec
	p := h.processor(t, deps, Options{Workers: 1})
	sum := p.Run(context.Background(), []string{bad, good})

	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Matched)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, bad, sum.Failures[0].Path)
	assert.ErrorIs(t, sum.Failures[0].Err, catalog.ErrCatalogUnavailable)

	_, recorded := h.ledger.entries[bad]
	assert.False(t, recorded, "unavailable catalog must leave the file for the next run")
	_, cached := h.cache.data[normalize.Key("A", "Broken")]
	assert.False(t, cached)
}

func TestCacheHitSkipsCatalog(t *testing.T) {
	h := newHarness()
	h.cache.data[normalize.Key("Hozier", "Take Me to Church")] = []models.CandidateTrack{hozier}

	p := h.processor(t, h.deps(), Options{})
	sum := p.Run(context.Background(), []string{"/m/HOZIER - take me to church!.mp3"})

	assert.Equal(t, 1, sum.Matched)
	assert.Zero(t, h.catalog.calls())
}

func TestCacheMissStoresEmptyResult(t *testing.T) {
	h := newHarness()
	p := h.processor(t, h.deps(), Options{})
	sum := p.Run(context.Background(), []string{"/m/Nobody - Nothing.mp3"})

	assert.Equal(t, 1, sum.NoMatch)
	cands, ok := h.cache.data[normalize.Key("Nobody", "Nothing")]
	assert.True(t, ok)
	assert.Empty(t, cands)
	assert.Equal(t, models.OutcomeNoMatchKeptOriginal, h.ledger.entries["/m/Nobody - Nothing.mp3"].Outcome)
}

func TestNukeSkipsLookupAndClearsEverything(t *testing.T) {
	h := newHarness()
	path := "/m/Hozier - Take Me to Church.mp3"
	h.tags.files[path] = models.TagFields{Artist: "Hozier", Title: "Take Me to Church", Genre: "Rock"}

	deps := h.deps()
	deps.Catalog = nil
	p := h.processor(t, deps, Options{Merge: merge.Options{Policy: models.PolicyNuke, ForceArt: true}})
	sum := p.Run(context.Background(), []string{path})

	assert.Equal(t, 1, sum.Policy)
	final := h.tags.written[path]
	assert.True(t, final.Exclusive)
	assert.Equal(t, models.TagFields{}, final.Tags)
	assert.Equal(t, models.OutcomeSkippedByPolicy, h.ledger.entries[path].Outcome)
}

func TestStripToCoreKeepsArtistAndTitle(t *testing.T) {
	h := newHarness()
	path := "/m/x.mp3"
	h.tags.files[path] = models.TagFields{Artist: "A", Title: "T", Album: "Al", Lyrics: "words"}

	p := h.processor(t, h.deps(), Options{Merge: merge.Options{Policy: models.PolicyStripToCore}})
	p.Run(context.Background(), []string{path})

	assert.Equal(t, models.TagFields{Artist: "A", Title: "T"}, h.tags.written[path].Tags)
	assert.Zero(t, h.catalog.calls())
}

func TestArtOnlyWithExistingArtMakesNoCalls(t *testing.T) {
	h := newHarness()
	path := "/m/Hozier - Take Me to Church.mp3"
	art := &models.Picture{MIMEType: "image/png", Data: []byte{9}}
	h.tags.files[path] = models.TagFields{CoverArt: art}

	p := h.processor(t, h.deps(), Options{Merge: merge.Options{Policy: models.PolicyArtOnly}})
	sum := p.Run(context.Background(), []string{path})

	assert.Equal(t, 1, sum.Policy)
	assert.Zero(t, sum.Written)
	assert.Zero(t, h.catalog.calls())
}

func TestArtOnlyEmbedsCoverWithoutTouchingFields(t *testing.T) {
	h := newHarness()
	path := "/m/Hozier - Take Me to Church.mp3"
	h.tags.files[path] = models.TagFields{Title: "take me to church (live)"}

	deps := h.deps()
	deps.Covers = stubProviders{}
	deps.Lyrics = stubProviders{}
	p := h.processor(t, deps, Options{Merge: merge.Options{Policy: models.PolicyArtOnly}})
	sum := p.Run(context.Background(), []string{path})

	assert.Equal(t, 1, sum.Matched)
	final := h.tags.written[path]
	assert.Equal(t, "take me to church (live)", final.Tags.Title)
	assert.Empty(t, final.Tags.Lyrics)
	require.NotNil(t, final.Tags.CoverArt)
	assert.Equal(t, []byte{1, 2, 3}, final.Tags.CoverArt.Data)
}

func TestProvidersFillExtrasOnMatch(t *testing.T) {
	h := newHarness()
	path := "/m/Hozier - Take Me to Church.mp3"

	deps := h.deps()
	deps.Covers = stubProviders{}
	deps.Lyrics = stubProviders{}
	deps.Enricher = stubProviders{}
	deps.Genres = stubProviders{}
	p := h.processor(t, deps, Options{})
	p.Run(context.Background(), []string{path})

	final := h.tags.written[path]
	assert.Equal(t, "Pop", final.Tags.Genre)
	assert.Equal(t, "[Verse]\nla la", final.Tags.Lyrics)
	require.NotNil(t, final.Enrichment)
	assert.Equal(t, 120, final.Enrichment.BPM)
	require.NotNil(t, final.Tags.CoverArt)
}

func TestProvidersSkippedWithoutMatch(t *testing.T) {
	h := newHarness()
	path := "/m/Nobody - Nothing.mp3"
	h.tags.files[path] = models.TagFields{Album: "Keep"}

	deps := h.deps()
	deps.Lyrics = stubProviders{}
	deps.Enricher = stubProviders{}
	p := h.processor(t, deps, Options{})
	sum := p.Run(context.Background(), []string{path})

	assert.Equal(t, 1, sum.NoMatch)
	assert.Zero(t, sum.Written, "unmatched file with nothing to add is left alone")
}

func TestTagWriteFailureIsRecordedAsPolicySkip(t *testing.T) {
	h := newHarness()
	path := "/m/Hozier - Take Me to Church.mp3"
	h.tags.writeErr[path] = errors.New("disk full")

	p := h.processor(t, h.deps(), Options{})
	sum := p.Run(context.Background(), []string{path})

	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, models.OutcomeSkippedByPolicy, h.ledger.entries[path].Outcome)
}

func TestTagReadFailureFailsFile(t *testing.T) {
	h := newHarness()
	path := "/m/broken.mp3"
	h.tags.readErr[path] = errors.New("bad header")

	p := h.processor(t, h.deps(), Options{})
	sum := p.Run(context.Background(), []string{path})

	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, h.ledger.entries)
}

func TestCleanupOnlyForHeuristicIdentity(t *testing.T) {
	h := newHarness()
	cleanup := &fakeCleanup{answer: "Hozier - Take Me to Church"}
	deps := h.deps()
	deps.Cleanup = cleanup

	p := h.processor(t, deps, Options{Workers: 1})
	res := p.ProcessFile(context.Background(), "/m/01_take_me_to_church_hq_audio.mp3")
	assert.Equal(t, StatusMatched, res.Status)
	assert.Equal(t, models.FromAICleanup, res.Identity.Confidence)

	res = p.ProcessFile(context.Background(), "/m/Hozier - Take Me to Church.mp3")
	assert.Equal(t, models.FromFilenamePattern, res.Identity.Confidence)
	assert.Equal(t, []string{"01_take_me_to_church_hq_audio"}, cleanup.seen)
}

func TestCanceledRunTouchesNothing(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := h.processor(t, h.deps(), Options{})
	sum := p.Run(ctx, []string{"/m/a.mp3", "/m/b.mp3"})

	assert.Equal(t, 2, sum.Canceled)
	assert.Zero(t, h.catalog.calls())
	assert.Empty(t, h.ledger.entries)
}

func TestNewValidatesDeps(t *testing.T) {
	h := newHarness()

	deps := h.deps()
	deps.Tags = nil
	_, err := New(deps, Options{})
	assert.Error(t, err)

	deps = h.deps()
	deps.Catalog = nil
	_, err = New(deps, Options{})
	assert.Error(t, err)

	_, err = New(h.deps(), Options{Workers: -1})
	assert.Error(t, err)

	p, err := New(h.deps(), Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, p.RunID())
	assert.Equal(t, DefaultWorkers, p.opts.Workers)
}

type recordingReporter struct {
	started int
	done    []string
	sum     *Summary
}

func (r *recordingReporter) Start(total int) { r.started = total }

func (r *recordingReporter) FileDone(res FileResult) { r.done = append(r.done, res.Path) }

func (r *recordingReporter) Finish(sum Summary) { r.sum = &sum }

func TestReporterSeesEveryFile(t *testing.T) {
	h := newHarness()
	rep := &recordingReporter{}
	deps := h.deps()
	deps.Reporter = rep

	paths := make([]string, 20)
	for i := range paths {
		paths[i] = fmt.Sprintf("/m/Artist %02d - Song.mp3", i)
	}
	p := h.processor(t, deps, Options{Workers: 4})
	p.Run(context.Background(), paths)

	assert.Equal(t, 20, rep.started)
	assert.ElementsMatch(t, paths, rep.done)
	require.NotNil(t, rep.sum)
	assert.Equal(t, 20, rep.sum.Total)
}
