package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultPollInterval = 30 * time.Second
	// Without a push channel polling is the only update source, so the
	// interval tightens.
	defaultFastPollInterval = 5 * time.Second
)

// Config represents the global ~/.wachat/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	// Backend API settings.
	APIURL   string `toml:"api_url"`
	APIToken string `toml:"api_token"`

	// PushEnabled is the push-channel capability flag. When false the
	// core runs poll-only at the fast interval.
	PushEnabled bool `toml:"push_enabled"`

	PollIntervalSeconds     int `toml:"poll_interval_seconds"`
	FastPollIntervalSeconds int `toml:"fast_poll_interval_seconds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PushEnabled:             true,
		PollIntervalSeconds:     int(defaultPollInterval / time.Second),
		FastPollIntervalSeconds: int(defaultFastPollInterval / time.Second),
	}
}

// Load reads config from the given path and applies environment
// overrides. A missing file is an error; callers fall back to Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault reads config from the given path, falling back to
// defaults when the file is missing or unreadable. Environment
// overrides apply either way. The load error, if any, is returned
// alongside the usable config so callers can log it.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = Default()
		cfg.applyEnv()
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// PollInterval returns the effective poll interval given the push
// capability flag.
func (c *Config) PollInterval() time.Duration {
	if c.PushEnabled {
		return secondsOr(c.PollIntervalSeconds, defaultPollInterval)
	}
	return secondsOr(c.FastPollIntervalSeconds, defaultFastPollInterval)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WACHAT_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("WACHAT_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("WACHAT_PUSH_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.PushEnabled = enabled
		}
	}
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
