// Package config loads the filtercache binary settings from the environment
// (and a local .env file, when present).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// --- Store ---
	StoreBackend  string `mapstructure:"STORE_BACKEND"` // redis | valkey | memory
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// --- Rows ---
	Codec     string `mapstructure:"CODEC"`    // json | msgpack | cbor | proto
	Compress  string `mapstructure:"COMPRESS"` // none | s2 | zstd
	MaxDecode int    `mapstructure:"MAX_DECODE"`

	// --- Query engine ---
	QueryBackend string `mapstructure:"QUERY_BACKEND"` // postgres | memory
	SeedRows     int    `mapstructure:"SEED_ROWS"`
	DBHost       string `mapstructure:"DB_HOST"`
	DBPort       int    `mapstructure:"DB_PORT"`
	DBUser       string `mapstructure:"DB_USER"`
	DBPassword   string `mapstructure:"DB_PASSWORD"`
	DBName       string `mapstructure:"DB_NAME"`
	DBSSLMode    string `mapstructure:"DB_SSLMODE"`

	// --- Cache ---
	Namespace        string        `mapstructure:"CACHE_NAMESPACE"`
	MarkerTTL        time.Duration `mapstructure:"MARKER_TTL"`
	EntryTTL         time.Duration `mapstructure:"ENTRY_TTL"`
	PageSize         int           `mapstructure:"PAGE_SIZE"`
	PopulateWorkers  int           `mapstructure:"POPULATE_WORKERS"`
	PopulateQueue    int           `mapstructure:"POPULATE_QUEUE"`
	PopulateAttempts int           `mapstructure:"POPULATE_ATTEMPTS"`

	// --- Observability ---
	LogBackend  string `mapstructure:"LOG_BACKEND"` // zap | logrus | slog
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
}

// Error is a setting that failed validation.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("config: %s: %s", e.Field, e.Message) }

var defaults = map[string]any{
	"STORE_BACKEND":     "redis",
	"REDIS_ADDR":        "localhost:6379",
	"REDIS_DB":          0,
	"CODEC":             "json",
	"COMPRESS":          "none",
	"MAX_DECODE":        0,
	"QUERY_BACKEND":     "postgres",
	"SEED_ROWS":         0,
	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "postgres",
	"DB_NAME":           "people",
	"DB_SSLMODE":        "disable",
	"CACHE_NAMESPACE":   "people",
	"MARKER_TTL":        "60s",
	"ENTRY_TTL":         "10m",
	"PAGE_SIZE":         20,
	"POPULATE_WORKERS":  2,
	"POPULATE_QUEUE":    64,
	"POPULATE_ATTEMPTS": 3,
	"LOG_BACKEND":       "zap",
	"LOG_LEVEL":         "info",
}

// keys without a default must be bound to be seen by Unmarshal
var boundKeys = []string{"REDIS_PASSWORD", "DB_PASSWORD", "METRICS_ADDR"}

// LoadFromEnv reads .env (when it exists) and then the process environment.
func LoadFromEnv() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	for _, k := range boundKeys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return &Error{Field: field, Message: fmt.Sprintf("%q not one of %s", v, strings.Join(allowed, ", "))}
}

// Validate reports every bad setting, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	add(oneOf("STORE_BACKEND", c.StoreBackend, "redis", "valkey", "memory"))
	add(oneOf("CODEC", c.Codec, "json", "msgpack", "cbor", "proto"))
	add(oneOf("COMPRESS", c.Compress, "none", "s2", "zstd"))
	add(oneOf("QUERY_BACKEND", c.QueryBackend, "postgres", "memory"))
	add(oneOf("LOG_BACKEND", c.LogBackend, "zap", "logrus", "slog"))
	add(oneOf("LOG_LEVEL", strings.ToLower(c.LogLevel), "debug", "info", "warn", "error"))

	if c.StoreBackend != "memory" && c.RedisAddr == "" {
		add(&Error{Field: "REDIS_ADDR", Message: "required for " + c.StoreBackend})
	}
	if c.QueryBackend == "postgres" && (c.DBHost == "" || c.DBName == "") {
		add(&Error{Field: "DB_HOST", Message: "host and name required for postgres"})
	}
	if c.DBPort <= 0 || c.DBPort > 65535 {
		add(&Error{Field: "DB_PORT", Message: "out of range"})
	}
	if c.MarkerTTL <= 0 {
		add(&Error{Field: "MARKER_TTL", Message: "must be positive"})
	}
	if c.EntryTTL < c.MarkerTTL {
		add(&Error{Field: "ENTRY_TTL", Message: "must not be shorter than MARKER_TTL"})
	}
	if c.PageSize <= 0 {
		add(&Error{Field: "PAGE_SIZE", Message: "must be positive"})
	}
	if c.SeedRows < 0 {
		add(&Error{Field: "SEED_ROWS", Message: "must not be negative"})
	}
	return errors.Join(errs...)
}

// DSN is the Postgres connection URL.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + strconv.Itoa(c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

func mask(s string) string {
	if s == "" {
		return "(empty)"
	}
	return "********"
}

// String prints the settings with secrets masked.
func (c *Config) String() string {
	var sb strings.Builder
	line := func(k string, v any) { fmt.Fprintf(&sb, "  %s: %v\n", k, v) }

	sb.WriteString("\n")
	line("StoreBackend", c.StoreBackend)
	line("RedisAddr", c.RedisAddr)
	line("RedisDB", c.RedisDB)
	line("RedisPassword", mask(c.RedisPassword))
	line("Codec", c.Codec)
	line("Compress", c.Compress)
	line("QueryBackend", c.QueryBackend)
	line("DBHost", c.DBHost)
	line("DBPort", c.DBPort)
	line("DBUser", c.DBUser)
	line("DBPassword", mask(c.DBPassword))
	line("DBName", c.DBName)
	line("Namespace", c.Namespace)
	line("MarkerTTL", c.MarkerTTL)
	line("EntryTTL", c.EntryTTL)
	line("PageSize", c.PageSize)
	line("Populate", fmt.Sprintf("workers=%d queue=%d attempts=%d", c.PopulateWorkers, c.PopulateQueue, c.PopulateAttempts))
	line("Log", c.LogBackend+"/"+c.LogLevel)
	line("MetricsAddr", c.MetricsAddr)
	return sb.String()
}
