// Package config loads sqlsyncd configuration from YAML with defaults
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	otelx "github.com/basket/sqlsync/internal/otel"
)

// DatabaseConfig names the backend one synchronizer runs against.
type DatabaseConfig struct {
	// URL selects the backend by scheme: postgres:// or sqlite:path.
	URL string `yaml:"url"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ScheduleConfig is one periodic query resubmission.
type ScheduleConfig struct {
	Name    string `yaml:"name"`
	Cron    string `yaml:"cron"` // standard 5-field cron expression
	SQL     string `yaml:"sql"`
	Mode    string `yaml:"mode"` // query (default), full_sync, delete
	Trigger bool   `yaml:"trigger"`
}

// Config is the whole sqlsyncd configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Otel     otelx.Config   `yaml:"otel"`

	// TickIntervalMS is how often the host loop ticks. Default 16ms
	// (one frame at roughly 60Hz).
	TickIntervalMS int `yaml:"tick_interval_ms"`

	// QueueSize caps the bridge completion queue. Default 64.
	QueueSize int `yaml:"queue_size"`

	Schedules []ScheduleConfig `yaml:"schedules"`
}

// TickInterval returns the tick interval as a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

func defaultConfig() Config {
	return Config{
		Database:       DatabaseConfig{URL: ":memory:"},
		Log:            LogConfig{Level: "info", Format: "text"},
		TickIntervalMS: 16,
		QueueSize:      64,
	}
}

// Load reads the config file at path, applies defaults, then environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLSYNC_DB_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SQLSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if raw := os.Getenv("SQLSYNC_TICK_INTERVAL_MS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.TickIntervalMS = n
		}
	}
}

func normalize(cfg *Config) {
	if cfg.Database.URL == "" {
		cfg.Database.URL = ":memory:"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.TickIntervalMS <= 0 {
		cfg.TickIntervalMS = 16
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	for i := range cfg.Schedules {
		if cfg.Schedules[i].Mode == "" {
			cfg.Schedules[i].Mode = "query"
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q (supported: text, json)", cfg.Log.Format)
	}
	for _, s := range cfg.Schedules {
		if s.SQL == "" {
			return fmt.Errorf("schedule %q: sql cannot be empty", s.Name)
		}
		if s.Cron == "" {
			return fmt.Errorf("schedule %q: cron cannot be empty", s.Name)
		}
		switch s.Mode {
		case "query", "full_sync", "delete":
		default:
			return fmt.Errorf("schedule %q: mode %q (supported: query, full_sync, delete)", s.Name, s.Mode)
		}
	}
	return nil
}
