// file: cmd/watch.go
// version: 1.0.0
// guid: d7c9a45e-e2e6-4297-ba30-88433a998e37

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/walsoup/MusicMetadataFetcher/internal/config"
	"github.com/walsoup/MusicMetadataFetcher/internal/scanner"
	"github.com/walsoup/MusicMetadataFetcher/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Process a folder, then keep processing MP3s as they appear",
	Long: `Watch runs once over the folder and then waits for new or rewritten MP3
files. Changes are collected for the debounce period and processed as one
batch. Files already in the ledger are skipped, so the tags written by a
batch do not trigger another one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveRunConfig(cmd, args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return watchFolder(ctx, cmd, cfg, slog.Default())
	},
}

func init() {
	addProcessingFlags(watchCmd.Flags())
	watchCmd.Flags().Duration("debounce", watcher.DefaultDebounce, "quiet period before a batch of changes is processed")
}

func watchFolder(ctx context.Context, cmd *cobra.Command, cfg config.Config, log *slog.Logger) error {
	comps, err := buildComponents(ctx, cfg, log, newReporter(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			log.Warn("failed to close stores", "error", err)
		}
	}()

	batches := make(chan []string)
	w := watcher.New(func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	}, cfg.WatchDebounce, log)
	if err := w.Start(cfg.MusicDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.MusicDir, err)
	}
	defer w.Stop()

	files, err := scanner.ScanDirectoryParallel(cfg.MusicDir, cfg.Workers)
	if err != nil {
		return fmt.Errorf("scan error: %w", err)
	}
	if _, err := comps.runBatch(ctx, cfg, files); err != nil {
		return err
	}

	// Force applies to the initial pass only; later batches are files the
	// watcher just saw change.
	cfg.Force = false
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for new MP3 files (Ctrl+C to stop)\n", cfg.MusicDir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-batches:
			log.Info("processing changed files", "count", len(paths))
			if _, err := comps.runBatch(ctx, cfg, paths); err != nil {
				log.Error("batch failed", "error", err)
			}
		}
	}
}
