// file: internal/config/config.go
// version: 2.0.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/walsoup/MusicMetadataFetcher/internal/ledger"
	"github.com/walsoup/MusicMetadataFetcher/internal/logging"
	"github.com/walsoup/MusicMetadataFetcher/internal/matcher"
	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// EnvPrefix prefixes every environment variable mapped onto a config key.
const EnvPrefix = "MMF"

// CacheConfig locates the persistent result cache.
type CacheConfig struct {
	Path       string `yaml:"path" toml:"path"`
	FlushEvery int    `yaml:"flush_every" toml:"flush_every"`
}

// LedgerConfig selects the ledger backend.
type LedgerConfig struct {
	Type string `yaml:"type" toml:"type"`
	Path string `yaml:"path" toml:"path"`
}

// SpotifyConfig holds catalog credentials and request tuning.
type SpotifyConfig struct {
	ClientID          string        `yaml:"client_id" toml:"client_id"`
	ClientSecret      string        `yaml:"client_secret" toml:"client_secret"`
	MaxResults        int           `yaml:"max_results" toml:"max_results"`
	MaxAttempts       int           `yaml:"max_attempts" toml:"max_attempts"`
	BaseBackoff       time.Duration `yaml:"base_backoff" toml:"base_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second" toml:"requests_per_second"`
}

// MatcherConfig tunes candidate selection.
type MatcherConfig struct {
	TitleWeight  float64 `yaml:"title_weight" toml:"title_weight"`
	ArtistWeight float64 `yaml:"artist_weight" toml:"artist_weight"`
	Threshold    float64 `yaml:"threshold" toml:"threshold"`
	Metric       string  `yaml:"metric" toml:"metric"`
}

// OpenAIConfig configures the cleanup and enrichment provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	Model   string `yaml:"model" toml:"model"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// Config holds application configuration
type Config struct {
	MusicDir      string        `yaml:"music_dir" toml:"music_dir"`
	Policy        string        `yaml:"policy" toml:"policy"`
	Force         bool          `yaml:"force" toml:"force"`
	ForceArt      bool          `yaml:"force_art" toml:"force_art"`
	NoArt         bool          `yaml:"no_art" toml:"no_art"`
	KeepComments  bool          `yaml:"keep_comments" toml:"keep_comments"`
	NoLyrics      bool          `yaml:"no_lyrics" toml:"no_lyrics"`
	NoCache       bool          `yaml:"no_cache" toml:"no_cache"`
	Workers       int           `yaml:"workers" toml:"workers"`
	AICleanup     bool          `yaml:"ai_cleanup" toml:"ai_cleanup"`
	AIEnrich      bool          `yaml:"ai_enrich" toml:"ai_enrich"`
	WatchDebounce time.Duration `yaml:"watch_debounce" toml:"watch_debounce"`
	LogLevel      string        `yaml:"log_level" toml:"log_level"`
	LogFormat     string        `yaml:"log_format" toml:"log_format"`
	LogFile       string        `yaml:"log_file" toml:"log_file"`
	MetricsFile   string        `yaml:"metrics_file" toml:"metrics_file"`

	Cache   CacheConfig   `yaml:"cache" toml:"cache"`
	Ledger  LedgerConfig  `yaml:"ledger" toml:"ledger"`
	Spotify SpotifyConfig `yaml:"spotify" toml:"spotify"`
	Matcher MatcherConfig `yaml:"matcher" toml:"matcher"`
	OpenAI  OpenAIConfig  `yaml:"openai" toml:"openai"`
	Genius  struct {
		APIKey string `yaml:"api_key" toml:"api_key"`
	} `yaml:"genius" toml:"genius"`
	LastFM struct {
		APIKey string `yaml:"api_key" toml:"api_key"`
	} `yaml:"lastfm" toml:"lastfm"`
}

var AppConfig Config

// envAliases maps keys to the third-party variable names users already
// have exported for other tools.
var envAliases = map[string][]string{
	"spotify.client_id":     {"SPOTIPY_CLIENT_ID", "SPOTIFY_ID", "SPOTIFY_CLIENT_ID"},
	"spotify.client_secret": {"SPOTIPY_CLIENT_SECRET", "SPOTIFY_SECRET", "SPOTIFY_CLIENT_SECRET"},
	"openai.api_key":        {"OPENAI_API_KEY"},
	"genius.api_key":        {"GENIUS_API_KEY", "GENIUS_ACCESS_TOKEN"},
	"lastfm.api_key":        {"LASTFM_API_KEY"},
}

// SetDefaults registers every default with viper.
func SetDefaults() {
	viper.SetDefault("policy", string(models.PolicyNormal))
	viper.SetDefault("workers", 4)
	viper.SetDefault("watch_debounce", 5*time.Second)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	viper.SetDefault("cache.flush_every", 25)
	viper.SetDefault("ledger.type", ledger.BackendPebble)

	viper.SetDefault("spotify.max_results", 10)
	viper.SetDefault("spotify.max_attempts", 3)
	viper.SetDefault("spotify.base_backoff", 500*time.Millisecond)
	viper.SetDefault("spotify.requests_per_second", 5.0)

	viper.SetDefault("matcher.title_weight", matcher.DefaultTitleWeight)
	viper.SetDefault("matcher.artist_weight", matcher.DefaultArtistWeight)
	viper.SetDefault("matcher.threshold", matcher.DefaultThreshold)
	viper.SetDefault("matcher.metric", string(matcher.MetricLevenshtein))

	viper.SetDefault("openai.model", "gpt-4o-mini")
}

// BindEnv maps MMF_* variables and the well-known credential variables onto
// config keys.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, names := range envAliases {
		envs := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		_ = viper.BindEnv(envs...)
	}
}

// InitConfig initializes the application configuration
func InitConfig() {
	SetDefaults()
	BindEnv()

	AppConfig = Config{
		MusicDir:      viper.GetString("music_dir"),
		Policy:        viper.GetString("policy"),
		Force:         viper.GetBool("force"),
		ForceArt:      viper.GetBool("force_art"),
		NoArt:         viper.GetBool("no_art"),
		KeepComments:  viper.GetBool("keep_comments"),
		NoLyrics:      viper.GetBool("no_lyrics"),
		NoCache:       viper.GetBool("no_cache"),
		Workers:       viper.GetInt("workers"),
		AICleanup:     viper.GetBool("ai_cleanup"),
		AIEnrich:      viper.GetBool("ai_enrich"),
		WatchDebounce: viper.GetDuration("watch_debounce"),
		LogLevel:      viper.GetString("log_level"),
		LogFormat:     viper.GetString("log_format"),
		LogFile:       viper.GetString("log_file"),
		MetricsFile:   viper.GetString("metrics_file"),
		Cache: CacheConfig{
			Path:       viper.GetString("cache.path"),
			FlushEvery: viper.GetInt("cache.flush_every"),
		},
		Ledger: LedgerConfig{
			Type: viper.GetString("ledger.type"),
			Path: viper.GetString("ledger.path"),
		},
		Spotify: SpotifyConfig{
			ClientID:          viper.GetString("spotify.client_id"),
			ClientSecret:      viper.GetString("spotify.client_secret"),
			MaxResults:        viper.GetInt("spotify.max_results"),
			MaxAttempts:       viper.GetInt("spotify.max_attempts"),
			BaseBackoff:       viper.GetDuration("spotify.base_backoff"),
			RequestsPerSecond: viper.GetFloat64("spotify.requests_per_second"),
		},
		Matcher: MatcherConfig{
			TitleWeight:  viper.GetFloat64("matcher.title_weight"),
			ArtistWeight: viper.GetFloat64("matcher.artist_weight"),
			Threshold:    viper.GetFloat64("matcher.threshold"),
			Metric:       viper.GetString("matcher.metric"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  viper.GetString("openai.api_key"),
			Model:   viper.GetString("openai.model"),
			BaseURL: viper.GetString("openai.base_url"),
		},
	}
	AppConfig.Genius.APIKey = viper.GetString("genius.api_key")
	AppConfig.LastFM.APIKey = viper.GetString("lastfm.api_key")

	// Normalize ledger type
	if AppConfig.Ledger.Type == "sqlite3" {
		AppConfig.Ledger.Type = ledger.BackendSQLite
	}
	if AppConfig.Ledger.Type == "" {
		AppConfig.Ledger.Type = ledger.BackendPebble
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if _, ok := models.ParsePolicy(c.Policy); !ok {
		return fmt.Errorf("policy %q: want normal, artOnly, stripToCore or nuke", c.Policy)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ForceArt && c.NoArt {
		return fmt.Errorf("force_art and no_art are mutually exclusive")
	}
	for name, v := range map[string]float64{
		"matcher.title_weight":  c.Matcher.TitleWeight,
		"matcher.artist_weight": c.Matcher.ArtistWeight,
		"matcher.threshold":     c.Matcher.Threshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s %.2f outside [0,1]", name, v)
		}
	}
	if _, err := matcher.ParseMetric(c.Matcher.Metric); err != nil {
		return err
	}
	if c.Spotify.MaxResults < 1 || c.Spotify.MaxResults > 50 {
		return fmt.Errorf("spotify.max_results must be between 1 and 50, got %d", c.Spotify.MaxResults)
	}
	if c.Spotify.MaxAttempts < 1 {
		return fmt.Errorf("spotify.max_attempts must be at least 1, got %d", c.Spotify.MaxAttempts)
	}
	switch c.Ledger.Type {
	case ledger.BackendPebble, ledger.BackendSQLite:
	default:
		return fmt.Errorf("ledger.type %q: want pebble or sqlite", c.Ledger.Type)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// PolicyValue returns the parsed policy. Call Validate first.
func (c Config) PolicyValue() models.Policy {
	p, _ := models.ParsePolicy(c.Policy)
	return p
}

// Selector builds the match selector from the matcher settings.
func (c Config) Selector() (*matcher.Selector, error) {
	metric, err := matcher.ParseMetric(c.Matcher.Metric)
	if err != nil {
		return nil, err
	}
	s := &matcher.Selector{
		TitleWeight:  c.Matcher.TitleWeight,
		ArtistWeight: c.Matcher.ArtistWeight,
		Threshold:    c.Matcher.Threshold,
		Metric:       metric,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
