// Package config loads server configuration from an optional YAML file with
// environment variable overrides. CLI flags are applied on top by main.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5m" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Review    ReviewConfig    `yaml:"review"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds the HTTP listen settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DataConfig points at the backing dataset file.
type DataConfig struct {
	File string `yaml:"file"`
}

// ReviewConfig tunes the consistency engine and names the admin identity.
type ReviewConfig struct {
	AdminUser      string   `yaml:"admin_user"`
	SaveThreshold  int      `yaml:"save_threshold"`
	SessionTimeout Duration `yaml:"session_timeout"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// RateLimitConfig tunes the per-client token bucket. Zero requests disables
// rate limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// Load reads configuration from an optional YAML file and LINKREVIEW_*
// environment variables. An empty path loads defaults plus environment only.
func Load(path string) (Config, error) {
	cfg := Config{
		Server: ServerConfig{Addr: "localhost:7860"},
		Data:   DataConfig{File: "data/links.json"},
		Review: ReviewConfig{
			AdminUser:      "admin",
			SaveThreshold:  3,
			SessionTimeout: Duration(5 * time.Minute),
		},
		Log: LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 300,
			Burst:             50,
		},
	}

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if addr := os.Getenv("LINKREVIEW_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if file := os.Getenv("LINKREVIEW_DATA_FILE"); file != "" {
		cfg.Data.File = file
	}
	if admin := os.Getenv("LINKREVIEW_ADMIN_USER"); admin != "" {
		cfg.Review.AdminUser = admin
	}
	if raw := os.Getenv("LINKREVIEW_SAVE_THRESHOLD"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LINKREVIEW_SAVE_THRESHOLD: %w", err)
		}
		cfg.Review.SaveThreshold = n
	}
	if raw := os.Getenv("LINKREVIEW_SESSION_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LINKREVIEW_SESSION_TIMEOUT: %w", err)
		}
		cfg.Review.SessionTimeout = Duration(d)
	}
	if level := os.Getenv("LINKREVIEW_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a CLI flag
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
