package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the tool configuration. Trading rules live in the plan file, not
// here.
type Config struct {
	History HistoryConfig `json:"history" yaml:"history"`
	Coach   CoachConfig   `json:"coach" yaml:"coach"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// HistoryConfig selects where run history is kept.
type HistoryConfig struct {
	Backend string `json:"backend" yaml:"backend" validate:"oneof=file sqlite"`
	Path    string `json:"path" yaml:"path" validate:"required_if=Backend sqlite"` // directory for file, database for sqlite
	Key     string `json:"key" yaml:"key" validate:"required"`
}

// CoachConfig controls the optional coaching summary.
type CoachConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	Temperature float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     string  `json:"timeout" yaml:"timeout"` // e.g. "30s"
	APIKeyEnv   string  `json:"api_key_env" yaml:"api_key_env" validate:"required_if=Enabled true"`
}

// LogConfig sets log verbosity and output format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=console json"`
}

// ParseTimeout converts the timeout string to a duration.
func (c CoachConfig) ParseTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Timeout)
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldErrors maps a failed field to the message reported for it.
var fieldErrors = map[string]string{
	"history.backend":   "history.backend must be 'file' or 'sqlite'",
	"history.path":      "history.path required for sqlite backend",
	"history.key":       "history.key is required",
	"coach.max_tokens":  "coach.max_tokens must not be negative",
	"coach.temperature": "coach.temperature must be between 0 and 2",
	"coach.api_key_env": "coach.api_key_env required when coaching is enabled",
	"log.format":        "log.format must be 'console' or 'json'",
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if msg, ok := fieldErrors[field]; ok {
			return errors.New(msg)
		}
		return fmt.Errorf("%s failed %q", field, fe.Tag())
	}

	if c.History.Backend == "file" && strings.ContainsAny(c.History.Key, `/\`) && c.History.Path != "" {
		return fmt.Errorf("history.key must be a plain name when history.path is set")
	}
	if _, err := c.Coach.ParseTimeout(); err != nil {
		return fmt.Errorf("coach.timeout: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		History: HistoryConfig{
			Backend: "file",
			Path:    "state",
			Key:     "memory",
		},
		Coach: CoachConfig{
			Enabled:     false,
			Model:       "gpt-4o-mini",
			MaxTokens:   200,
			Temperature: 0.7,
			Timeout:     "30s",
			APIKeyEnv:   "OPENAI_API_KEY",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
