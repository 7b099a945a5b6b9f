// file: cmd/ledger.go
// version: 2.0.0
// guid: c8f6a0d4-2a8b-48cf-9d08-02cc9915d9fc

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/pebble/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/walsoup/MusicMetadataFetcher/internal/backup"
	"github.com/walsoup/MusicMetadataFetcher/internal/config"
	"github.com/walsoup/MusicMetadataFetcher/internal/ledger"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

var (
	ledgerCmd = &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or reset the processed-file ledger",
		Long:  "The ledger records every file a run has finished so later runs skip it.",
	}

	ledgerListCmd = &cobra.Command{
		Use:   "list",
		Short: "Show recorded files and their outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			format, _ := cmd.Flags().GetString("format")
			raw, _ := cmd.Flags().GetBool("raw")
			if raw {
				if config.AppConfig.Ledger.Type != ledger.BackendPebble {
					return fmt.Errorf("raw inspection is only available for Pebble ledgers")
				}
				return runRawPebbleQuery(cmd.OutOrStdout(), limit)
			}
			return runLedgerList(cmd.OutOrStdout(), limit, format)
		},
	}

	ledgerBackupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Archive the ledger store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			keep, _ := cmd.Flags().GetInt("keep")
			return runLedgerBackup(cmd.OutOrStdout(), dir, keep)
		},
	}

	ledgerBackupsCmd = &cobra.Command{
		Use:   "backups",
		Short: "List ledger archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return runLedgerBackups(cmd.OutOrStdout(), dir)
		},
	}

	ledgerRestoreCmd = &cobra.Command{
		Use:   "restore <archive>",
		Short: "Replace the ledger store with an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("yes")
			return runLedgerRestore(cmd, args[0], force)
		},
	}

	ledgerClearCmd = &cobra.Command{
		Use:   "clear [paths...]",
		Short: "Forget files so the next run processes them again",
		Long:  "Clear removes the given paths from the ledger. Without paths every entry is removed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("yes")
			return runLedgerClear(cmd, args, force)
		},
	}
)

func init() {
	ledgerListCmd.Flags().Int("limit", 0, "Number of entries to display (0 for all)")
	ledgerListCmd.Flags().String("format", "table", "Output format: table or yaml")
	ledgerListCmd.Flags().Bool("raw", false, "Show raw Pebble key/value data (Pebble only)")

	ledgerClearCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	ledgerRestoreCmd.Flags().Bool("yes", false, "Skip confirmation prompt")

	for _, c := range []*cobra.Command{ledgerBackupCmd, ledgerBackupsCmd} {
		c.Flags().String("dir", "", "Archive directory (default under the XDG data home)")
	}
	ledgerBackupCmd.Flags().Int("keep", 10, "Number of archives to keep (0 keeps all)")

	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerClearCmd)
	ledgerCmd.AddCommand(ledgerBackupCmd)
	ledgerCmd.AddCommand(ledgerBackupsCmd)
	ledgerCmd.AddCommand(ledgerRestoreCmd)
}

func ledgerPath() (string, error) {
	if p := config.AppConfig.Ledger.Path; p != "" {
		return p, nil
	}
	return ledger.DefaultPath(config.AppConfig.Ledger.Type)
}

func openLedger() (ledger.Store, error) {
	store, err := ledger.Open(config.AppConfig.Ledger.Type, config.AppConfig.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return store, nil
}

func runLedgerList(out io.Writer, limit int, format string) error {
	if limit < 0 {
		return errors.New("limit must not be negative")
	}
	store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list ledger: %w", err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	switch strings.ToLower(format) {
	case "yaml", "yml":
		if entries == nil {
			entries = []models.LedgerEntry{}
		}
		data, err := yaml.Marshal(entries)
		if err != nil {
			return fmt.Errorf("failed to encode ledger: %w", err)
		}
		_, err = out.Write(data)
		return err
	case "", "table":
	default:
		return fmt.Errorf("unsupported format %q (want table or yaml)", format)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No files recorded.")
		return nil
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Path", "Outcome", "Completed", "Run"})
	for _, e := range entries {
		tw.AppendRow(table.Row{
			truncateString(e.Path, 120),
			e.Outcome,
			e.CompletedAt.Local().Format(time.DateTime),
			e.RunID,
		})
	}
	tw.AppendFooter(table.Row{"Total", len(entries), "", ""})
	fmt.Fprintln(out, tw.Render())
	return nil
}

func runLedgerClear(cmd *cobra.Command, paths []string, force bool) error {
	store, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(paths) > 0 {
		if err := store.Clear(paths...); err != nil {
			return fmt.Errorf("failed to clear ledger entries: %w", err)
		}
		fmt.Fprintf(out, "Cleared %d ledger entries.\n", len(paths))
		return nil
	}

	if !force {
		confirmed, err := promptYesNo(cmd.InOrStdin(), out, "Forget every processed file")
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(out, "Aborted. Ledger unchanged.")
			return nil
		}
	}
	if err := store.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	fmt.Fprintln(out, "Ledger cleared. The next run will process every file again.")
	return nil
}

func runLedgerBackup(out io.Writer, dir string, keep int) error {
	path, err := ledgerPath()
	if err != nil {
		return err
	}
	cfg := backup.DefaultConfig()
	if dir != "" {
		cfg.Dir = dir
	}
	cfg.MaxBackups = keep

	info, err := backup.Create(path, config.AppConfig.Ledger.Type, cfg)
	if err != nil {
		return fmt.Errorf("failed to back up ledger: %w", err)
	}
	fmt.Fprintf(out, "Backup written to %s (%d bytes, sha256 %s)\n", info.Path, info.Size, info.Checksum)
	return nil
}

func runLedgerBackups(out io.Writer, dir string) error {
	if dir == "" {
		dir = backup.DefaultDir()
	}
	backups, err := backup.List(dir)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Fprintf(out, "No backups in %s.\n", dir)
		return nil
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Archive", "Store", "Size", "Created"})
	for _, b := range backups {
		tw.AppendRow(table.Row{b.Filename, b.StoreType, b.Size, b.CreatedAt.Local().Format(time.DateTime)})
	}
	fmt.Fprintln(out, tw.Render())
	return nil
}

func runLedgerRestore(cmd *cobra.Command, archive string, force bool) error {
	path, err := ledgerPath()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !force {
		confirmed, err := promptYesNo(cmd.InOrStdin(), out, fmt.Sprintf("Replace %s with %s", path, archive))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(out, "Aborted. Ledger unchanged.")
			return nil
		}
	}
	if err := backup.Restore(archive, path); err != nil {
		return fmt.Errorf("failed to restore ledger: %w", err)
	}
	fmt.Fprintf(out, "Ledger restored from %s\n", archive)
	return nil
}

func runRawPebbleQuery(out io.Writer, limit int) error {
	path, err := ledgerPath()
	if err != nil {
		return err
	}
	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to open Pebble ledger: %w", err)
	}
	defer db.Close()

	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(ledger.PebbleKeyPrefix),
		UpperBound: append([]byte(ledger.PebbleKeyPrefix), 0xFF),
	})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	count := 0
	for ok := iter.First(); ok && iter.Valid(); ok = iter.Next() {
		fmt.Fprintf(out, "Key: %s\n", string(iter.Key()))
		val := iter.Value()
		fmt.Fprintf(out, "Value length: %d bytes\n", len(val))
		fmt.Fprintf(out, "Value preview: %s\n", truncateString(string(val), 500))
		fmt.Fprintln(out, "---")

		count++
		if limit > 0 && count >= limit {
			break
		}
	}

	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterator error: %w", err)
	}

	if count == 0 {
		fmt.Fprintln(out, "No ledger keys found.")
	}

	return nil
}

func promptYesNo(in io.Reader, out io.Writer, action string) (bool, error) {
	fmt.Fprintf(out, "%s? Type 'yes' to confirm: ", action)
	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "yes", nil
}

func truncateString(in string, max int) string {
	if len(in) <= max {
		return in
	}
	return in[:max] + "..."
}
