// Package config loads soundstage configuration from defaults, the user's
// config file and SOUNDSTAGE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/erinmikailstaples/soundstage/internal/api"
)

// Config is the resolved client configuration.
type Config struct {
	BackendURL         string        `yaml:"backend_url"`
	DataDir            string        `yaml:"data_dir"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	StatusPollInterval time.Duration `yaml:"status_poll_interval"`
	Retry              RetryConfig   `yaml:"retry"`
	LogLevel           string        `yaml:"log_level"`
}

// RetryConfig bounds the retries applied to idempotent reads.
type RetryConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	policy := api.DefaultRetryPolicy()
	return &Config{
		BackendURL:         api.DefaultBaseURL,
		DataDir:            defaultDataDir(),
		RequestTimeout:     10 * time.Second,
		StatusPollInterval: 5 * time.Second,
		Retry: RetryConfig{
			MaxRetries:      policy.MaxRetries,
			InitialInterval: policy.InitialInterval,
			MaxInterval:     policy.MaxInterval,
		},
		LogLevel: "info",
	}
}

// DefaultPath returns ~/.soundstage/config.yaml.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".soundstage", "config.yaml")
}

// Load reads the default config file if present, then applies environment
// overrides and validates.
func Load() (*Config, error) {
	return load(DefaultPath(), false)
}

// LoadFromPath is Load with an explicit file, which must exist.
func LoadFromPath(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		if required || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadAndMerge decodes the YAML file at path over cfg. Keys absent from the
// file keep their current values.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

// applyEnvOverrides applies SOUNDSTAGE_* variables read through getenv.
func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	if v := getenv("SOUNDSTAGE_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := getenv("SOUNDSTAGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("SOUNDSTAGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SOUNDSTAGE_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"SOUNDSTAGE_STATUS_POLL_INTERVAL", &cfg.StatusPollInterval},
		{"SOUNDSTAGE_RETRY_INITIAL_INTERVAL", &cfg.Retry.InitialInterval},
		{"SOUNDSTAGE_RETRY_MAX_INTERVAL", &cfg.Retry.MaxInterval},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := getenv("SOUNDSTAGE_RETRY_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SOUNDSTAGE_RETRY_MAX_RETRIES: %w", err)
		}
		cfg.Retry.MaxRetries = n
	}
	return nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend_url %q: %w", c.BackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid backend_url %q (must be an http or https URL)", c.BackendURL)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.StatusPollInterval < 0 {
		return fmt.Errorf("status_poll_interval must not be negative, got %s", c.StatusPollInterval)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.InitialInterval < 0 || c.Retry.MaxInterval < 0 {
		return errors.New("retry intervals must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RetryPolicy converts the retry settings for api.Options.
func (c *Config) RetryPolicy() *api.RetryPolicy {
	return &api.RetryPolicy{
		MaxRetries:      c.Retry.MaxRetries,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
	}
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q (valid: debug, info, warn, error)", s)
	}
}

func defaultDataDir() string {
	return filepath.Join(homeDir(), ".soundstage")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return home
}
