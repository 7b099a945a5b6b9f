// file: internal/config/persistence.go
// version: 2.0.0
// guid: 9c8d7e6f-5a4b-3c2d-1e0f-9a8b7c6d5e4f

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the base name of the per-user config file.
const ConfigFileName = ".musicmetadatafetcher"

const redacted = "********"

// ConfigFilePath returns the default config file location in the home
// directory.
func ConfigFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ConfigFileName+".yaml"), nil
}

// settingsMap flattens c into nested maps keyed like the config file.
// Durations are written as strings so both encoders round-trip them.
func settingsMap(c Config, showSecrets bool) map[string]any {
	secret := func(v string) string {
		if v == "" || showSecrets {
			return v
		}
		return redacted
	}
	return map[string]any{
		"music_dir":      c.MusicDir,
		"policy":         c.Policy,
		"force":          c.Force,
		"force_art":      c.ForceArt,
		"no_art":         c.NoArt,
		"keep_comments":  c.KeepComments,
		"no_lyrics":      c.NoLyrics,
		"no_cache":       c.NoCache,
		"workers":        c.Workers,
		"ai_cleanup":     c.AICleanup,
		"ai_enrich":      c.AIEnrich,
		"watch_debounce": c.WatchDebounce.String(),
		"log_level":      c.LogLevel,
		"log_format":     c.LogFormat,
		"log_file":       c.LogFile,
		"metrics_file":   c.MetricsFile,
		"cache": map[string]any{
			"path":        c.Cache.Path,
			"flush_every": c.Cache.FlushEvery,
		},
		"ledger": map[string]any{
			"type": c.Ledger.Type,
			"path": c.Ledger.Path,
		},
		"spotify": map[string]any{
			"client_id":           c.Spotify.ClientID,
			"client_secret":       secret(c.Spotify.ClientSecret),
			"max_results":         c.Spotify.MaxResults,
			"max_attempts":        c.Spotify.MaxAttempts,
			"base_backoff":        c.Spotify.BaseBackoff.String(),
			"requests_per_second": c.Spotify.RequestsPerSecond,
		},
		"matcher": map[string]any{
			"title_weight":  c.Matcher.TitleWeight,
			"artist_weight": c.Matcher.ArtistWeight,
			"threshold":     c.Matcher.Threshold,
			"metric":        c.Matcher.Metric,
		},
		"openai": map[string]any{
			"api_key":  secret(c.OpenAI.APIKey),
			"model":    c.OpenAI.Model,
			"base_url": c.OpenAI.BaseURL,
		},
		"genius": map[string]any{"api_key": secret(c.Genius.APIKey)},
		"lastfm": map[string]any{"api_key": secret(c.LastFM.APIKey)},
	}
}

// Render encodes c as yaml or toml. Secrets are masked unless showSecrets.
func Render(c Config, format string, showSecrets bool) ([]byte, error) {
	settings := settingsMap(c, showSecrets)
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config: %w", err)
		}
		return data, nil
	case "toml":
		data, err := toml.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported config format %q (want yaml or toml)", format)
	}
}

// SaveConfigToFile writes c as YAML to path, secrets included. The file is
// created with owner-only permissions.
func SaveConfigToFile(path string, c Config) error {
	data, err := Render(c, "yaml", true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	// Write with restrictive permissions since it may contain secrets
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
