// Package config loads stocklog configuration from a YAML file with
// STOCKLOG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stocklog/internal/capture"
	"github.com/roach88/stocklog/internal/natsintake"
	"github.com/roach88/stocklog/internal/store"
)

// Config is the full stocklog configuration.
type Config struct {
	Database Database `yaml:"database"`
	HTTP     HTTP     `yaml:"http"`
	NATS     NATS     `yaml:"nats"`
	Capture  Capture  `yaml:"capture"`
	Log      Log      `yaml:"log"`
}

type Database struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Timezone string `yaml:"timezone"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

// NATS intake is disabled when URL is empty.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type Capture struct {
	TrackedType string   `yaml:"tracked_type"`
	TraceRoot   string   `yaml:"trace_root"`
	TraceSkip   []string `yaml:"trace_skip"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: Database{
			Driver:   store.DriverSQLite3,
			DSN:      "stocklog.db",
			Timezone: "UTC",
		},
		HTTP: HTTP{Addr: ":8080"},
		NATS: NATS{Subject: natsintake.DefaultSubject},
		Capture: Capture{
			TrackedType: capture.DefaultTrackedType,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("STOCKLOG_DATABASE_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("STOCKLOG_DATABASE_DSN", c.Database.DSN)
	c.Database.Timezone = getEnv("STOCKLOG_DATABASE_TIMEZONE", c.Database.Timezone)
	c.HTTP.Addr = getEnv("STOCKLOG_HTTP_ADDR", c.HTTP.Addr)
	c.NATS.URL = getEnv("STOCKLOG_NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("STOCKLOG_NATS_SUBJECT", c.NATS.Subject)
	c.Capture.TrackedType = getEnv("STOCKLOG_CAPTURE_TRACKED_TYPE", c.Capture.TrackedType)
	c.Capture.TraceRoot = getEnv("STOCKLOG_CAPTURE_TRACE_ROOT", c.Capture.TraceRoot)
	if v := getEnv("STOCKLOG_CAPTURE_TRACE_SKIP", ""); v != "" {
		c.Capture.TraceSkip = splitList(v)
	}
	c.Log.Level = getEnv("STOCKLOG_LOG_LEVEL", c.Log.Level)
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case store.DriverSQLite3, store.DriverSQLite, store.DriverPostgres, store.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" && c.Database.Driver != store.DriverMemory {
		errs = append(errs, errors.New("database.dsn: required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("database.timezone: %w", err))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Capture.TrackedType == "" {
		errs = append(errs, errors.New("capture.tracked_type: required"))
	}

	return errors.Join(errs...)
}

// Location returns the site timezone used for day-granularity filters.
func (c Config) Location() (*time.Location, error) {
	if c.Database.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Database.Timezone)
}

// StoreOptions returns the store options for this configuration.
func (c Config) StoreOptions() (store.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return store.Options{}, fmt.Errorf("load timezone: %w", err)
	}
	return store.Options{
		Driver:   c.Database.Driver,
		DSN:      c.Database.DSN,
		Location: loc,
	}, nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
