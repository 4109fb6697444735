// Package config assembles runtime configuration from defaults, an optional
// YAML file and SKYWATCH_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/star/skywatch/internal/api"
	"github.com/star/skywatch/internal/heavens"
	"github.com/star/skywatch/internal/refresh"
	"github.com/star/skywatch/internal/satellite"
)

// Config is the full runtime configuration.
type Config struct {
	HTTP      api.Config      `yaml:"http"`
	Source    SourceConfig    `yaml:"source"`
	Satellite SatelliteConfig `yaml:"satellite"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

// SourceConfig describes the remote site and the observer.
type SourceConfig struct {
	BaseURL   string           `yaml:"base_url"`
	UserAgent string           `yaml:"user_agent"`
	Timeout   time.Duration    `yaml:"timeout"`
	Observer  heavens.Observer `yaml:"observer"`
}

// SatelliteConfig selects the satellite whose passes are tracked.
type SatelliteConfig struct {
	NoradID int `yaml:"norad_id"`
}

// ArchiveConfig controls on-disk table history.
type ArchiveConfig struct {
	Dir      string `yaml:"dir"`
	MaxFiles int    `yaml:"max_files"`
}

// RefreshConfig controls scheduled fetching.
type RefreshConfig struct {
	Enabled        bool `yaml:"enabled"`
	refresh.Config `yaml:",inline"`
}

// Default returns the built-in configuration.
func Default() Config {
	b := heavens.DefaultOptionBuilder()
	return Config{
		HTTP: api.Config{
			Addr: ":8080",
		},
		Source: SourceConfig{
			BaseURL:   b.BaseURL,
			UserAgent: b.UserAgent,
			Timeout:   b.Timeout,
			Observer:  b.Observer,
		},
		Satellite: SatelliteConfig{
			NoradID: satellite.DefaultID,
		},
		Archive: ArchiveConfig{
			Dir:      "/tmp/skywatch/data",
			MaxFiles: 5,
		},
		Refresh: RefreshConfig{
			Enabled: true,
			Config: refresh.Config{
				Schedule: refresh.DefaultSchedule,
				Timeout:  time.Minute,
			},
		},
	}
}

// OptionBuilder returns the request option builder for the configured source.
func (c Config) OptionBuilder() heavens.OptionBuilder {
	return heavens.OptionBuilder{
		BaseURL:   c.Source.BaseURL,
		Observer:  c.Source.Observer,
		Timeout:   c.Source.Timeout,
		UserAgent: c.Source.UserAgent,
	}
}

// Load builds the configuration. path may be empty to skip the file.
// Invalid environment values are logged and the previous value is kept;
// an unreadable or malformed file and inconsistent auth settings are errors.
func Load(path string, logger *slog.Logger) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg, logger)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	logger.Info("config loaded",
		"file", path,
		"http_addr", cfg.HTTP.Addr,
		"auth_enabled", cfg.HTTP.Auth.Enabled,
		"base_url", cfg.Source.BaseURL,
		"observer", cfg.Source.Observer.Location,
		"norad_id", cfg.Satellite.NoradID,
		"archive_dir", cfg.Archive.Dir,
		"refresh_enabled", cfg.Refresh.Enabled,
		"refresh_schedule", cfg.Refresh.Schedule,
	)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding config file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.HTTP.Auth.Enabled && c.HTTP.Auth.Token == "" {
		return errors.New("auth token is required when auth is enabled (SKYWATCH_AUTH_TOKEN)")
	}
	return nil
}

func applyEnv(cfg *Config, logger *slog.Logger) {
	if v := os.Getenv("SKYWATCH_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	envBool(logger, "SKYWATCH_TRUST_PROXY", &cfg.HTTP.TrustProxy)
	envBool(logger, "SKYWATCH_AUTH_ENABLED", &cfg.HTTP.Auth.Enabled)
	if v := os.Getenv("SKYWATCH_AUTH_TOKEN"); v != "" {
		cfg.HTTP.Auth.Token = v
	}

	if v := os.Getenv("SKYWATCH_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("SKYWATCH_USER_AGENT"); v != "" {
		cfg.Source.UserAgent = v
	}
	envSeconds(logger, "SKYWATCH_TIMEOUT", &cfg.Source.Timeout)
	envFloat(logger, "SKYWATCH_LAT", -90, 90, &cfg.Source.Observer.Lat)
	envFloat(logger, "SKYWATCH_LNG", -180, 180, &cfg.Source.Observer.Lng)
	envInt(logger, "SKYWATCH_ALT", -500, 10000, &cfg.Source.Observer.Alt)
	if v := os.Getenv("SKYWATCH_LOCATION"); v != "" {
		cfg.Source.Observer.Location = v
	}
	if v := os.Getenv("SKYWATCH_TZ"); v != "" {
		cfg.Source.Observer.TZ = v
	}

	envInt(logger, "SKYWATCH_NORAD_ID", 1, 999999999, &cfg.Satellite.NoradID)

	if v := os.Getenv("SKYWATCH_ARCHIVE_DIR"); v != "" {
		cfg.Archive.Dir = v
	}
	envInt(logger, "SKYWATCH_ARCHIVE_MAX_FILES", 1, 10000, &cfg.Archive.MaxFiles)

	envBool(logger, "SKYWATCH_REFRESH_ENABLED", &cfg.Refresh.Enabled)
	if v := os.Getenv("SKYWATCH_REFRESH_SCHEDULE"); v != "" {
		cfg.Refresh.Schedule = strings.TrimSpace(v)
	}
	envSeconds(logger, "SKYWATCH_REFRESH_TIMEOUT", &cfg.Refresh.Timeout)
}

func envBool(logger *slog.Logger, key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid boolean value, keeping current", "key", key, "value", v, "current", *dst)
		return
	}
	*dst = b
}

func envInt(logger *slog.Logger, key string, min, max int, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		logger.Warn("invalid integer value, keeping current", "key", key, "value", v, "current", *dst)
		return
	}
	*dst = n
}

func envFloat(logger *slog.Logger, key string, min, max float64, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < min || f > max {
		logger.Warn("invalid number value, keeping current", "key", key, "value", v, "current", *dst)
		return
	}
	*dst = f
}

func envSeconds(logger *slog.Logger, key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid seconds value, keeping current", "key", key, "value", v, "current_seconds", dst.Seconds())
		return
	}
	*dst = time.Duration(n) * time.Second
}
