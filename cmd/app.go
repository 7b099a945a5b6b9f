// file: cmd/app.go
// version: 1.1.0
// guid: dafc8a21-361b-42ce-91c3-02cd497cf12a

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/walsoup/MusicMetadataFetcher/internal/ai"
	"github.com/walsoup/MusicMetadataFetcher/internal/cache"
	"github.com/walsoup/MusicMetadataFetcher/internal/catalog"
	"github.com/walsoup/MusicMetadataFetcher/internal/config"
	"github.com/walsoup/MusicMetadataFetcher/internal/fileops"
	"github.com/walsoup/MusicMetadataFetcher/internal/ledger"
	"github.com/walsoup/MusicMetadataFetcher/internal/lyrics"
	"github.com/walsoup/MusicMetadataFetcher/internal/merge"
	"github.com/walsoup/MusicMetadataFetcher/internal/metrics"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
	"github.com/walsoup/MusicMetadataFetcher/internal/pipeline"
	"github.com/walsoup/MusicMetadataFetcher/internal/tagger"
)

// components holds the stores and providers shared by every batch of a
// command.
type components struct {
	cfg     config.Config
	log     *slog.Logger
	ledger  ledger.Store
	cache   *cache.Results
	genres  []genreStore
	metrics *metrics.Recorder
	deps    pipeline.Deps
}

// genreStore is a persisted genre lookup map.
type genreStore interface {
	Path() string
	Flush() error
	Close() error
}

// buildComponents opens the stores and wires the providers selected by
// cfg. The caller must Close the result.
func buildComponents(ctx context.Context, cfg config.Config, log *slog.Logger, rep pipeline.Reporter) (*components, error) {
	selector, err := cfg.Selector()
	if err != nil {
		return nil, err
	}

	store, err := ledger.Open(cfg.Ledger.Type, cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	results, err := openCache(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	c := &components{
		cfg:     cfg,
		log:     log,
		ledger:  store,
		cache:   results,
		metrics: metrics.NewRecorder(),
	}
	c.deps = pipeline.Deps{
		Tags:     tagger.New(fileops.DefaultConfig()),
		Selector: selector,
		Ledger:   store,
		Cache:    results,
		Reporter: rep,
		Metrics:  c.metrics,
		Logger:   log,
	}

	if lookupPolicy(cfg) {
		if err := c.wireCatalog(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	c.wireProviders()
	return c, nil
}

func lookupPolicy(cfg config.Config) bool {
	switch cfg.PolicyValue() {
	case models.PolicyNormal, models.PolicyArtOnly:
		return true
	}
	return false
}

func openCache(cfg config.Config, log *slog.Logger) (*cache.Results, error) {
	path := cfg.Cache.Path
	if path == "" {
		var err error
		if path, err = cache.DefaultPath(); err != nil {
			return nil, fmt.Errorf("resolve cache path: %w", err)
		}
	}
	results, err := cache.Open(path, cache.WithFlushEvery(cfg.Cache.FlushEvery), cache.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if cfg.NoCache {
		results.Disable()
	}
	return results, nil
}

func (c *components) wireCatalog(ctx context.Context) error {
	lastfmOpts, artistGenres, err := c.openGenreStores()
	if err != nil {
		return err
	}
	client, err := catalog.New(ctx, catalog.Config{
		ClientID:          c.cfg.Spotify.ClientID,
		ClientSecret:      c.cfg.Spotify.ClientSecret,
		MaxResults:        c.cfg.Spotify.MaxResults,
		MaxAttempts:       c.cfg.Spotify.MaxAttempts,
		BaseBackoff:       c.cfg.Spotify.BaseBackoff,
		RequestsPerSecond: c.cfg.Spotify.RequestsPerSecond,
		Logger:            c.log,
		LastFM:            catalog.NewLastFM(c.cfg.LastFM.APIKey, "", lastfmOpts...),
		ArtistGenres:      artistGenres,
	})
	if errors.Is(err, catalog.ErrMissingCredentials) {
		return fmt.Errorf("%w: set SPOTIPY_CLIENT_ID and SPOTIPY_CLIENT_SECRET (or spotify.client_id and spotify.client_secret in the config file)", err)
	}
	if err != nil {
		return err
	}
	c.deps.Catalog = client
	c.deps.Genres = client
	c.deps.Covers = catalog.NewCoverFetcher(nil)
	return nil
}

// openGenreStores opens the genre lookups kept beside the result cache.
// With the cache disabled the catalog falls back to in-memory maps.
func (c *components) openGenreStores() ([]catalog.LastFMOption, catalog.Store[[]string], error) {
	if c.cache.Disabled() {
		return nil, nil, nil
	}
	paths := cache.GenrePaths(c.cache.Path())
	artists, err := cache.OpenFile[[]string](paths[0], c.log)
	if err != nil {
		return nil, nil, err
	}
	lastfm, err := cache.OpenFile[string](paths[1], c.log)
	if err != nil {
		return nil, nil, err
	}
	c.genres = append(c.genres, artists, lastfm)
	return []catalog.LastFMOption{catalog.WithGenreStore(lastfm)}, artists, nil
}

// wireProviders attaches the optional AI and lyrics providers. Disabled
// providers stay nil so the pipeline skips them.
func (c *components) wireProviders() {
	if c.cfg.AICleanup || c.cfg.AIEnrich {
		provider := ai.NewOpenAIProvider(ai.Config{
			APIKey:  c.cfg.OpenAI.APIKey,
			Model:   c.cfg.OpenAI.Model,
			BaseURL: c.cfg.OpenAI.BaseURL,
		})
		if provider.IsEnabled() {
			if c.cfg.AICleanup {
				c.deps.Cleanup = provider
			}
			if c.cfg.AIEnrich {
				c.deps.Enricher = provider
			}
		} else {
			c.log.Warn("AI features requested but no OpenAI API key is configured; continuing without them")
		}
	}

	if !c.cfg.NoLyrics {
		genius := lyrics.NewGenius(c.cfg.Genius.APIKey, "")
		if genius.Enabled() {
			c.deps.Lyrics = genius
		} else {
			c.log.Debug("lyrics disabled: no Genius API key")
		}
	}
}

// processor returns a pipeline for one batch.
func (c *components) processor(cfg config.Config) (*pipeline.Processor, error) {
	return pipeline.New(c.deps, pipeline.Options{
		Merge:   mergeOptions(cfg),
		Workers: cfg.Workers,
	})
}

// runBatch processes paths and exports metrics when configured.
func (c *components) runBatch(ctx context.Context, cfg config.Config, paths []string) (pipeline.Summary, error) {
	if cfg.Force && len(paths) > 0 {
		if err := c.ledger.Clear(paths...); err != nil {
			return pipeline.Summary{}, fmt.Errorf("failed to reset ledger entries: %w", err)
		}
	}
	proc, err := c.processor(cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	c.log.Debug("starting batch", "run_id", proc.RunID(), "files", len(paths))
	sum := proc.Run(ctx, paths)

	if err := c.cache.Flush(); err != nil {
		c.log.Warn("failed to flush result cache", "error", err)
	}
	for _, g := range c.genres {
		if err := g.Flush(); err != nil {
			c.log.Warn("failed to flush genre cache", "path", g.Path(), "error", err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := c.metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			c.log.Warn("failed to write metrics file", "path", cfg.MetricsFile, "error", err)
		}
	}
	return sum, nil
}

// Close flushes the caches and closes the ledger.
func (c *components) Close() error {
	errs := []error{c.cache.Close()}
	for _, g := range c.genres {
		errs = append(errs, g.Close())
	}
	errs = append(errs, c.ledger.Close())
	return errors.Join(errs...)
}

func mergeOptions(cfg config.Config) merge.Options {
	return merge.Options{
		Policy:        cfg.PolicyValue(),
		ForceArt:      cfg.ForceArt,
		NoArt:         cfg.NoArt,
		StripComments: !cfg.KeepComments,
	}
}

// newReporter draws a progress bar only when stderr is a terminal.
func newReporter(out, errOut io.Writer) *pipeline.ConsoleReporter {
	return pipeline.NewConsoleReporter(out, errOut, pipeline.ConsoleOptions{
		Progress: !quiet && isTerminal(errOut),
		Verbose:  verbose,
		Quiet:    quiet,
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
