package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/xhit/go-str2duration/v2"
)

// Config holds every runtime setting of the ledger service
type Config struct {
	DatabaseDriver     string
	DatabaseURL        string
	WebhookSecret      string
	StartingBalance    float64
	SessionStart       time.Time // zero means "first trade day"
	LiveEmbargo        time.Duration
	RebuildLockTimeout time.Duration
	RedisURL           string
	LogLevel           string
	LogFormat          string
	Port               string
}

// Load reads an optional env file, then the process environment.
// ENV_FILE overrides the default ".env" path.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseDriver: strings.ToLower(getOr(getenv, "DATABASE_DRIVER", "sqlite")),
		DatabaseURL:    getenv("DATABASE_URL"),
		WebhookSecret:  getenv("WEBHOOK_SECRET"),
		RedisURL:       getenv("REDIS_URL"),
		LogLevel:       getOr(getenv, "LOG_LEVEL", "info"),
		LogFormat:      getOr(getenv, "LOG_FORMAT", "text"),
		Port:           getOr(getenv, "PORT", "8080"),
	}

	balance, err := strconv.ParseFloat(getOr(getenv, "STARTING_BALANCE", "10000"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid STARTING_BALANCE: %w", err)
	}
	if balance <= 0 {
		return nil, fmt.Errorf("invalid STARTING_BALANCE: must be positive")
	}
	cfg.StartingBalance = balance

	if raw := getenv("SESSION_START"); raw != "" {
		start, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_START: %w", err)
		}
		cfg.SessionStart = start.UTC()
	}

	if cfg.LiveEmbargo, err = parseDuration(getenv, "LIVE_EMBARGO", "1h"); err != nil {
		return nil, err
	}
	if cfg.RebuildLockTimeout, err = parseDuration(getenv, "REBUILD_LOCK_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// HasDatabase reports whether persistent storage is configured
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func getOr(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDuration(getenv func(string) string, key, def string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(getOr(getenv, key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
