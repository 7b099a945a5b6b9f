// file: cmd/cache.go
// version: 1.1.0
// guid: bde1d70c-4b8b-49c4-98a1-e4d58a4a08ba

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/walsoup/MusicMetadataFetcher/internal/cache"
	"github.com/walsoup/MusicMetadataFetcher/internal/config"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the catalog result cache",
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show the cache location and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := openCache(config.AppConfig, slog.Default())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:    %s\n", results.Path())
			fmt.Fprintf(out, "Queries: %d\n", results.Len())
			info, err := os.Stat(results.Path())
			switch {
			case errors.Is(err, fs.ErrNotExist):
				fmt.Fprintln(out, "Size:    (not written yet)")
			case err != nil:
				return fmt.Errorf("stat cache file: %w", err)
			default:
				fmt.Fprintf(out, "Size:    %d bytes\n", info.Size())
			}
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached catalog response and genre lookup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := openCache(config.AppConfig, slog.Default())
			if err != nil {
				return err
			}
			n := results.Len()
			if err := results.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached queries from %s\n", n, results.Path())
			for _, p := range cache.GenrePaths(results.Path()) {
				if err := cache.Remove(p); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed genre caches")
			return nil
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
