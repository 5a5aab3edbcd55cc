package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "file", cfg.History.Backend)
	assert.Equal(t, "state", cfg.History.Path)
	assert.Equal(t, "memory", cfg.History.Key)
	assert.False(t, cfg.Coach.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.Coach.Model)
	assert.Equal(t, 200, cfg.Coach.MaxTokens)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	with := func(mut func(*Config)) *Config {
		c := Default()
		mut(c)
		return c
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			config: Default(),
		},
		{
			name:    "unknown backend",
			config:  with(func(c *Config) { c.History.Backend = "redis" }),
			wantErr: true,
			errMsg:  "history.backend must be 'file' or 'sqlite'",
		},
		{
			name: "sqlite without path",
			config: with(func(c *Config) {
				c.History.Backend = "sqlite"
				c.History.Path = ""
			}),
			wantErr: true,
			errMsg:  "history.path required",
		},
		{
			name:    "missing key",
			config:  with(func(c *Config) { c.History.Key = "" }),
			wantErr: true,
			errMsg:  "history.key is required",
		},
		{
			name:    "key with separator under a directory",
			config:  with(func(c *Config) { c.History.Key = "a/b" }),
			wantErr: true,
			errMsg:  "plain name",
		},
		{
			name: "key as a path without directory",
			config: with(func(c *Config) {
				c.History.Path = ""
				c.History.Key = "state/memory.json"
			}),
		},
		{
			name:    "negative max tokens",
			config:  with(func(c *Config) { c.Coach.MaxTokens = -1 }),
			wantErr: true,
			errMsg:  "coach.max_tokens",
		},
		{
			name:    "temperature out of range",
			config:  with(func(c *Config) { c.Coach.Temperature = 3 }),
			wantErr: true,
			errMsg:  "coach.temperature must be between 0 and 2",
		},
		{
			name:    "bad timeout",
			config:  with(func(c *Config) { c.Coach.Timeout = "soon" }),
			wantErr: true,
			errMsg:  "coach.timeout",
		},
		{
			name: "enabled coach without key env",
			config: with(func(c *Config) {
				c.Coach.Enabled = true
				c.Coach.APIKeyEnv = ""
			}),
			wantErr: true,
			errMsg:  "coach.api_key_env",
		},
		{
			name:    "unknown log format",
			config:  with(func(c *Config) { c.Log.Format = "xml" }),
			wantErr: true,
			errMsg:  "log.format",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.History.Backend = "sqlite"
			cfg.History.Path = "state/history.sqlite"
			cfg.Coach.Enabled = true
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))

			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discipline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history:\n  key: desk\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "desk", cfg.History.Key)
	assert.Equal(t, "file", cfg.History.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.Coach.Model)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history:\n  backend: tape\n"), 0644))
	_, err = LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestCoachParseTimeout(t *testing.T) {
	tests := []struct {
		timeout  string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"", 0, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.timeout, func(t *testing.T) {
			d, err := CoachConfig{Timeout: tt.timeout}.ParseTimeout()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, d)
			}
		})
	}
}
