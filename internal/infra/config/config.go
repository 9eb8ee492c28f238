// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Bot      BotConfig               `yaml:"bot"`
	Store    StoreConfig             `yaml:"store"`
	Music    MusicConfig             `yaml:"music"`
	AniList  AniListConfig           `yaml:"anilist"`
	Modules  map[string]ModuleConfig `yaml:"modules"`
	Messages MessagesConfig          `yaml:"messages"`
}

// BotConfig represents gateway-level configuration.
type BotConfig struct {
	Token         string `yaml:"token" validate:"required"`
	DefaultPrefix string `yaml:"default_prefix" default:"y."`
	Presence      string `yaml:"presence" default:"with senpai"`
}

// StoreConfig represents the persistent key-value store configuration.
type StoreConfig struct {
	Path string `yaml:"path" default:"yukina.json"`
}

// MusicConfig represents playback configuration.
type MusicConfig struct {
	IdleTimeoutSec int    `yaml:"idle_timeout_sec" default:"60" validate:"omitempty,gte=1,lte=3600"`
	FFmpegPath     string `yaml:"ffmpeg_path" default:"ffmpeg"`
	OpusBitrate    int    `yaml:"opus_bitrate" default:"96000" validate:"omitempty,gte=8000,lte=512000"`
	SearchLimit    int    `yaml:"search_limit" default:"5" validate:"omitempty,gte=1,lte=25"`
}

// IdleTimeout returns the idle disconnect duration.
func (m MusicConfig) IdleTimeout() time.Duration {
	return time.Duration(m.IdleTimeoutSec) * time.Second
}

// AniListConfig represents the AniList API configuration.
type AniListConfig struct {
	Endpoint string `yaml:"endpoint" default:"https://graphql.anilist.co"`
	Token    string `yaml:"token"`
	PageSize int    `yaml:"page_size" default:"5" validate:"omitempty,gte=1,lte=10"`
}

// ModuleConfig represents a command module's configuration.
type ModuleConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing reply messages.
type MessagesConfig struct {
	JoinVoiceFirst string `yaml:"join_voice_first" default:"You need to join a voice channel first!"`
	SameChannel    string `yaml:"same_channel" default:"You need to be in the same voice channel!"`
	InvalidInput   string `yaml:"invalid_input" default:"Error: Invalid URL"`
	NoResults      string `yaml:"no_results" default:"No video results found!"`
	ResolveFailed  string `yaml:"resolve_failed" default:"Something went wrong resolving that track!"`
	NoTracksQueued string `yaml:"no_tracks_queued" default:"No tracks queued!"`
	JoinFailed     string `yaml:"join_failed" default:"I couldn't join your voice channel!"`
	PlaybackFailed string `yaml:"playback_failed" default:"Something went wrong starting playback!"`
	QueueCleared   string `yaml:"queue_cleared" default:"Queue cleared!"`
	PrefixUpdated  string `yaml:"prefix_updated" default:"Prefix updated to %s"`
	AnimeNotFound  string `yaml:"anime_not_found" default:"I couldn't find anything with that name!"`
	AnimeQueryErr  string `yaml:"anime_query_err" default:"Error querying Anilist! Please try again later."`
	PruneDone      string `yaml:"prune_done" default:"Deleted %d messages."`
	DefaultError   string `yaml:"default_error" default:"Something went wrong!"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Bot.Token = v
	}
	if v := os.Getenv("ANILIST_TOKEN"); v != "" {
		c.AniList.Token = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsModuleEnabled checks if a command module is enabled. Modules absent
// from the config are enabled; only an explicit enabled: false disables.
func (c *Config) IsModuleEnabled(name string) bool {
	if m, ok := c.Modules[name]; ok {
		return m.Enabled
	}
	return true
}

// ModuleSettings returns the settings map for a module, or nil.
func (c *Config) ModuleSettings(name string) map[string]any {
	if m, ok := c.Modules[name]; ok {
		return m.Settings
	}
	return nil
}
