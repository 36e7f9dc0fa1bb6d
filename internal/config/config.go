package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Snapshot backends.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Config holds all configuration for the autopilot CLI and daemon.
type Config struct {
	DatabaseURL         string
	RedisURL            string
	ProjectRoot         string
	SnapshotBackend     string
	SQLitePath          string
	PlansFile           string
	Interval            time.Duration
	StartupDelay        time.Duration
	CycleTimeout        time.Duration
	FallbackProbability float64
	Location            *time.Location
	Debug               bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	projectRoot, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	cfg := &Config{
		DatabaseURL:     getEnv("AUTOPILOT_DATABASE_URL", "postgres://localhost:5432/gym?sslmode=disable"),
		RedisURL:        getEnv("AUTOPILOT_REDIS_URL", "redis://localhost:6379/0"),
		ProjectRoot:     getEnv("AUTOPILOT_PROJECT_ROOT", projectRoot),
		SnapshotBackend: strings.ToLower(getEnv("AUTOPILOT_SNAPSHOT_BACKEND", BackendRedis)),
		PlansFile:       os.Getenv("AUTOPILOT_PLANS_FILE"),
		Debug:           getEnv("AUTOPILOT_DEBUG", "") != "",
	}
	cfg.SQLitePath = getEnv("AUTOPILOT_SQLITE_PATH", filepath.Join(cfg.ProjectRoot, ".autopilot", "state.db"))

	switch cfg.SnapshotBackend {
	case BackendRedis, BackendSQLite, BackendNone:
	default:
		return nil, fmt.Errorf("AUTOPILOT_SNAPSHOT_BACKEND: unknown backend %q", cfg.SnapshotBackend)
	}

	if cfg.Interval, err = getDuration("AUTOPILOT_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("AUTOPILOT_INTERVAL: must be positive")
	}
	if cfg.StartupDelay, err = getDuration("AUTOPILOT_STARTUP_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.CycleTimeout, err = getDuration("AUTOPILOT_CYCLE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	p := getEnv("AUTOPILOT_FALLBACK_PROBABILITY", "0.05")
	cfg.FallbackProbability, err = strconv.ParseFloat(p, 64)
	if err != nil || cfg.FallbackProbability < 0 || cfg.FallbackProbability > 1 {
		return nil, fmt.Errorf("AUTOPILOT_FALLBACK_PROBABILITY: want a number in [0,1], got %q", p)
	}

	tz := getEnv("AUTOPILOT_TIMEZONE", "Local")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("AUTOPILOT_TIMEZONE: %w", err)
	}
	return cfg, nil
}

// MigrationsDir is where the PostgreSQL migrations live.
func (c *Config) MigrationsDir() string {
	return filepath.Join(c.ProjectRoot, "migrations")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}
