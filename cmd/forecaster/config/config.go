// Package config parses the forecaster's runtime configuration from
// command-line flags with environment variable fallbacks (flags win).
//
// Configuration covers:
//   - HTTP listen address and logging (level, format)
//   - Snapshot storage backend (memory or redis) and redis connection
//   - Hub'Eau API base URL and the department filter for the site catalog
//   - Forecasting defaults (default algorithm, historical lookback)
//   - Tracked sites refreshed in the background and the refresh interval
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// Algorithm keys accepted for -default-algorithm. Kept in sync with the
// standard registry.
var knownAlgorithms = map[string]bool{
	"simple":            true,
	"moving_average":    true,
	"linear_regression": true,
}

// Config holds all forecaster configuration.
type Config struct {
	Listen    string
	LogLevel  string
	LogFormat string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	HubeauURL   string
	Departments []string

	DefaultAlgorithm string
	Lookback         time.Duration

	Sites    []string
	Interval time.Duration
}

// ParseFlags parses flags and environment variables into a Config and
// validates it, exiting with a message on invalid input.
func ParseFlags() *Config {
	cfg := &Config{}

	var departments, sites string

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Snapshot storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.SnapshotTTL, "snapshot-ttl", getEnvDuration("SNAPSHOT_TTL", 2*time.Hour), "Forecast snapshot TTL")

	flag.StringVar(&cfg.HubeauURL, "hubeau-url", getEnv("HUBEAU_URL", ""), "Hub'Eau hydrometrie API base URL (empty uses production)")
	flag.StringVar(&departments, "departments", getEnv("DEPARTMENTS", "38,73"), "Comma-separated department codes for the site catalog")

	flag.StringVar(&cfg.DefaultAlgorithm, "default-algorithm", getEnv("DEFAULT_ALGORITHM", "moving_average"), "Fallback forecasting algorithm: simple, moving_average, or linear_regression")
	flag.DurationVar(&cfg.Lookback, "lookback", getEnvDuration("LOOKBACK", 30*24*time.Hour), "Historical observation window")

	flag.StringVar(&sites, "sites", getEnv("SITES", ""), "Comma-separated site codes to refresh in the background")
	flag.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", time.Hour), "Background refresh interval")

	flag.Parse()

	cfg.Departments = splitList(departments)
	cfg.Sites = splitList(sites)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Storage != "memory" && c.Storage != "redis" {
		return fmt.Errorf("invalid storage %q (must be memory or redis)", c.Storage)
	}
	if c.Storage == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("redis-addr is required when storage=redis")
	}
	if !knownAlgorithms[c.DefaultAlgorithm] {
		return fmt.Errorf("invalid default-algorithm %q (must be simple, moving_average, or linear_regression)", c.DefaultAlgorithm)
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be > 0")
	}
	if c.SnapshotTTL <= 0 {
		return fmt.Errorf("snapshot-ttl must be > 0")
	}
	if len(c.Sites) > 0 && c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0 when sites are tracked")
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
