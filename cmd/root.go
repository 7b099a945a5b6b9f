// file: cmd/root.go
// version: 2.0.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/walsoup/MusicMetadataFetcher/internal/config"
	"github.com/walsoup/MusicMetadataFetcher/internal/logging"
)

var cfgFile string
var envFile string
var verbose bool
var quiet bool

// logCloser releases the log file opened for the running command.
var logCloser func() error

// flagKeys maps command-line flags onto config keys. A flag is bound only
// for the command that is executing, so run and watch can share names.
var flagKeys = map[string]string{
	"log-format":    "log_format",
	"log-file":      "log_file",
	"ledger-type":   "ledger.type",
	"ledger-path":   "ledger.path",
	"cache-path":    "cache.path",
	"force":         "force",
	"force-art":     "force_art",
	"no-art":        "no_art",
	"no-lyrics":     "no_lyrics",
	"keep-comments": "keep_comments",
	"no-cache":      "no_cache",
	"ai-cleanup":    "ai_cleanup",
	"ai-enrich":     "ai_enrich",
	"workers":       "workers",
	"policy":        "policy",
	"metrics-file":  "metrics_file",
	"debounce":      "watch_debounce",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "musicmetadatafetcher",
	Short: "Resolve and fix MP3 metadata from filenames and a track catalog",
	Long: `MusicMetadataFetcher parses noisy MP3 filenames and existing tags,
looks the track up in the Spotify catalog, picks the best candidate and
writes clean ID3 tags back into each file.

Processed files are remembered in a ledger so re-runs only touch new files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd.Flags()); err != nil {
			return err
		}
		config.InitConfig()
		return setupLogging(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.musicmetadatafetcher.yaml)")
	pf.StringVar(&envFile, "env-file", "", "dotenv file with API credentials (default: .env when present)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "print every file and debug logs")
	pf.BoolVarP(&quiet, "quiet", "q", false, "print failures only")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("log-file", "", "also write logs to this file")
	pf.String("ledger-type", "pebble", "ledger backend: pebble or sqlite")
	pf.String("ledger-path", "", "ledger location (default under the XDG data home)")
	pf.String("cache-path", "", "result cache file (default under the XDG cache home)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load env file %s: %v\n", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.ConfigFileName)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
		}
	} else if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindFlags binds the executing command's flags onto their config keys.
func bindFlags(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = viper.BindPFlag(key, f)
	})
	return err
}

func setupLogging(cmd *cobra.Command) error {
	level := config.AppConfig.LogLevel
	if verbose {
		level = "debug"
	} else if quiet {
		level = "warn"
	}

	log, closer, err := logging.New(logging.Options{
		Level:  level,
		Format: config.AppConfig.LogFormat,
		Output: cmd.ErrOrStderr(),
		File:   config.AppConfig.LogFile,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	logCloser = closer
	return nil
}

func closeLogging() error {
	if logCloser == nil {
		return nil
	}
	err := logCloser()
	logCloser = nil
	return err
}
