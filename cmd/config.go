// file: cmd/config.go
// version: 1.0.0
// guid: 252e3df1-23c7-4d0e-8a8d-94969a023190

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/walsoup/MusicMetadataFetcher/internal/config"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			showSecrets, _ := cmd.Flags().GetBool("show-secrets")
			data, err := config.Render(config.AppConfig, format, showSecrets)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			path := cfgFile
			if path == "" {
				var err error
				if path, err = config.ConfigFilePath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("%s already exists (use --overwrite to replace it)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.SaveConfigToFile(path, config.AppConfig); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
)

func init() {
	configShowCmd.Flags().String("format", "yaml", "Output format: yaml or toml")
	configShowCmd.Flags().Bool("show-secrets", false, "Print API keys instead of masking them")
	configInitCmd.Flags().Bool("overwrite", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
