package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultAPIURL         = "http://localhost:8000"
	DefaultRequestTimeout = 30 * time.Second
	DefaultPollInterval   = 5 * time.Second
)

// Config holds the editor client settings.
type Config struct {
	APIURL         string        `toml:"api_url"`
	LogMode        string        `toml:"log_mode"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	PollInterval   time.Duration `toml:"poll_interval"`
}

// fileConfig mirrors Config with durations spelled as strings ("30s").
type fileConfig struct {
	APIURL         string `toml:"api_url"`
	LogMode        string `toml:"log_mode"`
	RequestTimeout string `toml:"request_timeout"`
	PollInterval   string `toml:"poll_interval"`
}

// Load reads .env (if present), then the optional TOML file named by
// HOLODECK_CONFIG, then environment overrides.
//
// Recognised variables:
//   - API_URL: Asset Store base URL (defaults to DefaultAPIURL)
//   - LOG_MODE: "dev" or "prod"
//   - REQUEST_TIMEOUT, POLL_INTERVAL: Go durations
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		APIURL:         DefaultAPIURL,
		LogMode:        "dev",
		RequestTimeout: DefaultRequestTimeout,
		PollInterval:   DefaultPollInterval,
	}

	if path := strings.TrimSpace(os.Getenv("HOLODECK_CONFIG")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("API_URL")); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.LogMode = v
	}
	cfg.RequestTimeout = Duration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.PollInterval = Duration("POLL_INTERVAL", cfg.PollInterval)

	return cfg.normalize()
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if v := strings.TrimSpace(fc.APIURL); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(fc.LogMode); v != "" {
		c.LogMode = v
	}
	if v := strings.TrimSpace(fc.RequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := strings.TrimSpace(fc.PollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: poll_interval: %w", err)
		}
		c.PollInterval = d
	}
	return nil
}

func (c Config) normalize() (Config, error) {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return Config{}, fmt.Errorf("config: invalid API_URL %q", c.APIURL)
	}
	if c.RequestTimeout <= 0 {
		return Config{}, errors.New("config: request timeout must be positive")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c, nil
}

// Duration reads a Go duration from the environment, falling back to def
// when unset or malformed.
func Duration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Int reads an integer from the environment, falling back to def.
func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Bool reads "true"/"1"/"yes" (any case) as true; unset falls back to def.
func Bool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "":
		return def
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
