/*
Package config loads server settings.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file (optional; path set by --env-file)
  3. PRAYER_* environment variables
  4. Command-line flags

Variables already present in the environment are never overwritten by
the .env file.
*/
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
	"github.com/spf13/pflag"
)

// Store kinds.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds every server setting.
type Config struct {
	Port            int
	Store           string
	DBPath          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Timezone        string
	ContentDir      string
	DefaultLocale   string
	LogLevel        string
	LogFile         string
	CORSOrigins     []string
	SubmitPerMinute int

	SaveRetryInterval time.Duration // 0 disables background retries
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:            8080,
		Store:           StoreSQLite,
		DBPath:          "prayer.db",
		RedisAddr:       "localhost:6379",
		Timezone:        "Local",
		ContentDir:      "content",
		DefaultLocale:   "en",
		LogLevel:        "info",
		CORSOrigins:     []string{"*"},
		SubmitPerMinute: 10,

		SaveRetryInterval: time.Minute,
	}
}

// Load builds the configuration from args (without the program name)
// and the process environment.
func Load(args []string) (Config, error) {
	cfg := Default()

	flags := pflag.NewFlagSet("prayer-ledger", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to load if present")
	flags.Int("port", cfg.Port, "HTTP server port")
	flags.String("store", cfg.Store, "storage backend: sqlite, redis or memory")
	flags.String("db", cfg.DBPath, `SQLite database path (":memory:" for in-memory)`)
	flags.String("redis-addr", cfg.RedisAddr, "Redis address")
	flags.Int("redis-db", cfg.RedisDB, "Redis database number")
	flags.String("timezone", cfg.Timezone, "IANA zone that defines the prayer day")
	flags.String("content-dir", cfg.ContentDir, "article directory")
	flags.String("default-locale", cfg.DefaultLocale, "article fallback locale")
	flags.String("log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.String("log-file", cfg.LogFile, "rotating log file (empty disables)")
	flags.StringSlice("cors-origins", cfg.CORSOrigins, "allowed CORS origins")
	flags.Int("submit-per-minute", cfg.SubmitPerMinute, "check-in submissions allowed per user per minute")
	flags.Duration("save-retry-interval", cfg.SaveRetryInterval, "how often failed ledger saves are retried (0 disables)")
	if err := flags.Parse(args); err != nil {
		return cfg, err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load %s: %w", *envFile, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.applyFlags(flags)

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PRAYER_STORE", &c.Store)
	str("PRAYER_DB_PATH", &c.DBPath)
	str("PRAYER_REDIS_ADDR", &c.RedisAddr)
	str("PRAYER_REDIS_PASSWORD", &c.RedisPassword)
	str("PRAYER_TIMEZONE", &c.Timezone)
	str("PRAYER_CONTENT_DIR", &c.ContentDir)
	str("PRAYER_DEFAULT_LOCALE", &c.DefaultLocale)
	str("PRAYER_LOG_LEVEL", &c.LogLevel)
	str("PRAYER_LOG_FILE", &c.LogFile)
	if v, ok := os.LookupEnv("PRAYER_CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv("PRAYER_SAVE_RETRY_INTERVAL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PRAYER_SAVE_RETRY_INTERVAL: %w", err)
		}
		c.SaveRetryInterval = d
	}
	for key, dst := range map[string]*int{
		"PRAYER_PORT":              &c.Port,
		"PRAYER_REDIS_DB":          &c.RedisDB,
		"PRAYER_SUBMIT_PER_MINUTE": &c.SubmitPerMinute,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyFlags(flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "port":
			c.Port, _ = flags.GetInt("port")
		case "store":
			c.Store = f.Value.String()
		case "db":
			c.DBPath = f.Value.String()
		case "redis-addr":
			c.RedisAddr = f.Value.String()
		case "redis-db":
			c.RedisDB, _ = flags.GetInt("redis-db")
		case "timezone":
			c.Timezone = f.Value.String()
		case "content-dir":
			c.ContentDir = f.Value.String()
		case "default-locale":
			c.DefaultLocale = f.Value.String()
		case "log-level":
			c.LogLevel = f.Value.String()
		case "log-file":
			c.LogFile = f.Value.String()
		case "cors-origins":
			c.CORSOrigins, _ = flags.GetStringSlice("cors-origins")
		case "submit-per-minute":
			c.SubmitPerMinute, _ = flags.GetInt("submit-per-minute")
		case "save-retry-interval":
			c.SaveRetryInterval, _ = flags.GetDuration("save-retry-interval")
		}
	})
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("sqlite store requires a database path"))
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis store requires an address"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.SubmitPerMinute < 1 {
		errs = append(errs, fmt.Errorf("submit-per-minute must be positive, got %d", c.SubmitPerMinute))
	}
	if c.SaveRetryInterval < 0 {
		errs = append(errs, fmt.Errorf("save-retry-interval must not be negative, got %s", c.SaveRetryInterval))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
