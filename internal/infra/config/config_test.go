package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: Config{
				Bot: BotConfig{Token: "test-token"},
			},
			wantErr: false,
		},
		{
			name:    "missing bot token",
			config:  Config{},
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name: "idle timeout out of range",
			config: Config{
				Bot:   BotConfig{Token: "test-token"},
				Music: MusicConfig{IdleTimeoutSec: 7200},
			},
			wantErr: true,
			errMsg:  "IdleTimeoutSec",
		},
		{
			name: "opus bitrate too low",
			config: Config{
				Bot:   BotConfig{Token: "test-token"},
				Music: MusicConfig{OpusBitrate: 100},
			},
			wantErr: true,
			errMsg:  "OpusBitrate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
bot:
  token: file-token
music:
  idle_timeout_sec: 120
messages:
  no_results: "Nothing came up."
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, "y.", cfg.Bot.DefaultPrefix, "unset fields take defaults")
	assert.Equal(t, "with senpai", cfg.Bot.Presence)
	assert.Equal(t, 2*time.Minute, cfg.Music.IdleTimeout(), "file values win over defaults")
	assert.Equal(t, 96000, cfg.Music.OpusBitrate)
	assert.Equal(t, "Nothing came up.", cfg.Messages.NoResults)
	assert.Equal(t, "No tracks queued!", cfg.Messages.NoTracksQueued)
	assert.Equal(t, "https://graphql.anilist.co", cfg.AniList.Endpoint)
	assert.Equal(t, 5, cfg.AniList.PageSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
bot:
  token: file-token
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("ANILIST_TOKEN", "env-anilist")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Bot.Token)
	assert.Equal(t, "env-anilist", cfg.AniList.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_IsModuleEnabled(t *testing.T) {
	cfg := Config{
		Modules: map[string]ModuleConfig{
			"anime":      {Enabled: false},
			"moderation": {Enabled: true},
		},
	}

	assert.False(t, cfg.IsModuleEnabled("anime"))
	assert.True(t, cfg.IsModuleEnabled("moderation"))
	assert.True(t, cfg.IsModuleEnabled("music"), "unlisted modules default to enabled")
}
