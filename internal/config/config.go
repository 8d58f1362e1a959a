// Package config loads server configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. The bot token is environment-only
// so it never ends up in a checked-in file.
type Config struct {
	Port          int    `yaml:"port" env:"PORT"`
	TelegramToken string `yaml:"-" env:"TELEGRAM_TOKEN"`
	DatabaseURL   string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL      string `yaml:"redis_url" env:"REDIS_URL"`

	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`

	RateLimit         int `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateWindowSeconds int `yaml:"rate_window_seconds" env:"RATE_WINDOW_SECONDS"`

	GlobalRPS   float64 `yaml:"global_rps" env:"GLOBAL_RPS"`
	GlobalBurst int     `yaml:"global_burst" env:"GLOBAL_BURST"`

	MenuPath  string `yaml:"menu_path" env:"MENU_PATH"`
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR"`

	// TrustedProxy enables X-Forwarded-For for client identification. Only
	// set it when the server sits behind a proxy that overwrites the header.
	TrustedProxy bool `yaml:"trusted_proxy" env:"TRUSTED_PROXY"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Port:              8000,
		AllowedOrigins:    []string{"https://web.telegram.org", ".telegram.org"},
		RateLimit:         30,
		RateWindowSeconds: 60,
		GlobalRPS:         100,
		GlobalBurst:       200,
		MenuPath:          "menu.json",
		StaticDir:         "static",
	}
}

// Load builds the configuration: defaults, then the YAML file at path when
// it exists, then environment overrides. An empty path skips the file step.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for usability.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive, got %d", c.RateLimit)
	}
	if c.RateWindowSeconds <= 0 {
		return fmt.Errorf("rate_window_seconds must be positive, got %d", c.RateWindowSeconds)
	}
	return nil
}

// RateWindow returns the rate limit window as a duration.
func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}
