// file: cmd/cleanup.go
// version: 1.1.0
// guid: 1a0cd4ff-d1fd-40e9-8e34-6235a02d33ec

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/walsoup/MusicMetadataFetcher/internal/cache"
	"github.com/walsoup/MusicMetadataFetcher/internal/config"
	"github.com/walsoup/MusicMetadataFetcher/internal/ledger"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the result and genre caches and the processed-file ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return removeStores(cmd, config.AppConfig)
	},
}

// storePaths resolves the configured or default cache and ledger paths.
func storePaths(cfg config.Config) (cachePath, ledgerPath string, err error) {
	cachePath = cfg.Cache.Path
	if cachePath == "" {
		if cachePath, err = cache.DefaultPath(); err != nil {
			return "", "", fmt.Errorf("resolve cache path: %w", err)
		}
	}
	ledgerPath = cfg.Ledger.Path
	if ledgerPath == "" {
		if ledgerPath, err = ledger.DefaultPath(cfg.Ledger.Type); err != nil {
			return "", "", fmt.Errorf("resolve ledger path: %w", err)
		}
	}
	return cachePath, ledgerPath, nil
}

func removeStores(cmd *cobra.Command, cfg config.Config) error {
	cachePath, ledgerPath, err := storePaths(cfg)
	if err != nil {
		return err
	}
	if err := cache.Remove(cachePath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed result cache %s\n", cachePath)
	for _, p := range cache.GenrePaths(cachePath) {
		if err := cache.Remove(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed genre cache %s\n", p)
	}
	if err := ledger.Remove(ledgerPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed ledger %s\n", ledgerPath)
	return nil
}
