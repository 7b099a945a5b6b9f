// file: cmd/run.go
// version: 1.1.0
// guid: 8af049cd-5293-45d9-a628-4ccec1036685

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/walsoup/MusicMetadataFetcher/internal/config"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
	"github.com/walsoup/MusicMetadataFetcher/internal/pipeline"
	"github.com/walsoup/MusicMetadataFetcher/internal/scanner"
)

// errRunInterrupted is returned when a signal stops a run early.
var errRunInterrupted = errors.New("run interrupted")

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Resolve and write metadata for every MP3 under a folder",
	Long: `Run discovers every MP3 under the folder (argument or music_dir), skips
files already in the ledger, looks the rest up in the catalog and writes
the merged tags back.

Policies:
  normal       merge catalog data into the existing tags (default)
  artOnly      only add cover art (--skip-metadata)
  stripToCore  keep only artist and title (--rm-metadata)
  nuke         remove every tag (--nuke)`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveRunConfig(cmd, args)
		if err != nil {
			return err
		}
		cleanup, _ := cmd.Flags().GetBool("cleanup")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sum, err := runOnce(ctx, cmd, cfg, slog.Default())
		if err != nil {
			return err
		}
		if cleanup {
			if err := removeStores(cmd, cfg); err != nil {
				return err
			}
		}
		return summaryError(ctx, sum)
	},
}

func init() {
	addProcessingFlags(runCmd.Flags())
	runCmd.Flags().Bool("cleanup", false, "delete the result cache and ledger after the run")
}

// addProcessingFlags registers the flags shared by run and watch.
func addProcessingFlags(fs *pflag.FlagSet) {
	fs.Bool("force", false, "reprocess files already recorded in the ledger")
	fs.Bool("force-art", false, "replace existing cover art")
	fs.Bool("no-art", false, "never add or replace cover art")
	fs.Bool("no-lyrics", false, "skip lyrics lookup")
	fs.Bool("keep-comments", false, "keep existing comment frames")
	fs.Bool("no-cache", false, "bypass the persistent result cache")
	fs.Bool("ai-cleanup", false, "ask the AI provider to clean filenames that match no known pattern")
	fs.Bool("ai-enrich", false, "ask the AI provider for BPM, key, mood, danceability and popularity")
	fs.Int("workers", pipeline.DefaultWorkers, "number of files processed in parallel")
	fs.String("policy", string(models.PolicyNormal), "tag policy: normal, artOnly, stripToCore or nuke")
	fs.Bool("skip-metadata", false, "only add cover art (policy artOnly)")
	fs.Bool("rm-metadata", false, "keep only artist and title (policy stripToCore)")
	fs.Bool("nuke", false, "remove every tag (policy nuke)")
	fs.String("metrics-file", "", "write Prometheus metrics to this file after each run")
}

// resolveRunConfig applies the folder argument and the policy shortcut
// flags on top of the loaded configuration.
func resolveRunConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := config.AppConfig
	if len(args) == 1 {
		cfg.MusicDir = args[0]
	}
	if cfg.MusicDir == "" {
		return cfg, fmt.Errorf("music folder not specified: pass a directory or set music_dir")
	}

	shortcuts := []struct {
		flag   string
		policy models.Policy
	}{
		{"nuke", models.PolicyNuke},
		{"rm-metadata", models.PolicyStripToCore},
		{"skip-metadata", models.PolicyArtOnly},
	}
	var chosen []string
	for _, s := range shortcuts {
		if on, _ := cmd.Flags().GetBool(s.flag); on {
			if len(chosen) == 0 {
				cfg.Policy = string(s.policy)
			}
			chosen = append(chosen, "--"+s.flag)
		}
	}
	if len(chosen) > 1 {
		return cfg, fmt.Errorf("policy flags %v are mutually exclusive", chosen)
	}
	if len(chosen) == 1 && cmd.Flags().Changed("policy") {
		return cfg, fmt.Errorf("%s cannot be combined with --policy", chosen[0])
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Policy = string(cfg.PolicyValue())
	return cfg, nil
}

// runOnce discovers the MP3s under cfg.MusicDir and processes them.
func runOnce(ctx context.Context, cmd *cobra.Command, cfg config.Config, log *slog.Logger) (pipeline.Summary, error) {
	files, err := scanner.ScanDirectoryParallel(cfg.MusicDir, cfg.Workers)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("scan error: %w", err)
	}
	log.Info("discovered files", "dir", cfg.MusicDir, "count", len(files))
	if len(files) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No MP3 files found in %s\n", cfg.MusicDir)
		return pipeline.Summary{}, nil
	}

	comps, err := buildComponents(ctx, cfg, log, newReporter(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			log.Warn("failed to close stores", "error", err)
		}
	}()

	return comps.runBatch(ctx, cfg, files)
}

// summaryError turns failed or canceled files into a non-nil error so the
// process exits non-zero.
func summaryError(ctx context.Context, sum pipeline.Summary) error {
	if ctx.Err() != nil || sum.Canceled > 0 {
		return errRunInterrupted
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", sum.Failed, sum.Total)
	}
	return nil
}
