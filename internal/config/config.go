// Package config defines the top-level configuration for the black market
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BLACKMARKET_* environment variables.
type Config struct {
	Market   MarketConfig   `toml:"market"`
	Messages MessagesConfig `toml:"messages"`
	Storage  StorageConfig  `toml:"storage"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// MarketConfig controls rotation cadence and size.
type MarketConfig struct {
	RotationIntervalHours int      `toml:"rotation_interval_hours"`
	ActiveCount           int      `toml:"active_count"`
	StatusInterval        duration `toml:"status_interval"`
}

// RotationInterval returns the rotation interval as a time.Duration.
func (m MarketConfig) RotationInterval() time.Duration {
	return time.Duration(m.RotationIntervalHours) * time.Hour
}

// MessagesConfig holds the player-facing texts.
type MessagesConfig struct {
	AlreadyPurchased string `toml:"already_purchased"`
	NotEnoughItems   string `toml:"not_enough_items"`
	PurchaseSuccess  string `toml:"purchase_success"`
	NotActive        string `toml:"not_active"`
	SoldOut          string `toml:"sold_out"`
	TimeRemaining    string `toml:"time_remaining"`
	RotationForced   string `toml:"rotation_forced"`
	ItemAdded        string `toml:"item_added"`
	ItemRemoved      string `toml:"item_removed"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	// Driver is one of "file", "sqlite", "postgres", "redis".
	Driver string `toml:"driver"`
	// Path is the document location for the file driver.
	Path string `toml:"path"`
}

// SQLiteConfig holds the SQLite database location.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters for the rotation
// archive. The archive is off unless Enabled is set.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// HistoryKey selects one archived period for history mode to print.
	HistoryKey string `toml:"history_key"`
}

// NotifyConfig holds chat channel credentials and the event filter.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so it can be written as "10m" in TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			RotationIntervalHours: 24,
			ActiveCount:           3,
			StatusInterval:        duration{10 * time.Minute},
		},
		Messages: MessagesConfig{
			AlreadyPurchased: "You have already purchased this item!",
			NotEnoughItems:   "You don't have the required items!",
			PurchaseSuccess:  "You have successfully purchased this item!",
			NotActive:        "That item is no longer on offer.",
			SoldOut:          "SOLD OUT",
			TimeRemaining:    "Time until next rotation: {time}",
			RotationForced:   "The black market items have been rotated!",
			ItemAdded:        "Item added to the black market pool!",
			ItemRemoved:      "Item removed from the black market pool!",
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   "data/market.toml",
		},
		SQLite: SQLiteConfig{
			Path: "data/market.db",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "blackmarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   4,
			MaxRetries: 3,
			KeyPrefix:  "blackmarket",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "blackmarket-history",
			Prefix:         "blackmarket",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"rotation", "empty_pool"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"run":     true,
	"rotate":  true,
	"status":  true,
	"history": true,
}

var validDrivers = map[string]bool{
	"file":     true,
	"sqlite":   true,
	"postgres": true,
	"redis":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validEvents = map[string]bool{
	"rotation":     true,
	"empty_pool":   true,
	"pool_changed": true,
}

// Validate checks the configuration and returns every problem found in one
// error.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, rotate, status, history)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Market.RotationIntervalHours <= 0 {
		errs = append(errs, "market: rotation_interval_hours must be positive")
	}
	if c.Market.ActiveCount <= 0 {
		errs = append(errs, "market: active_count must be positive")
	}
	if c.Market.StatusInterval.Duration < 0 {
		errs = append(errs, "market: status_interval must not be negative")
	}

	switch driver := strings.ToLower(c.Storage.Driver); {
	case !validDrivers[driver]:
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: file, sqlite, postgres, redis)", c.Storage.Driver))
	case driver == "file" && c.Storage.Path == "":
		errs = append(errs, "storage: path is required for the file driver")
	case driver == "sqlite" && c.SQLite.Path == "":
		errs = append(errs, "sqlite: path is required for the sqlite driver")
	case driver == "postgres" && c.Postgres.DSN == "" && c.Postgres.Host == "":
		errs = append(errs, "postgres: dsn or host is required for the postgres driver")
	case driver == "redis" && c.Redis.Addr == "":
		errs = append(errs, "redis: addr is required for the redis driver")
	}

	if c.S3.Enabled || strings.EqualFold(c.Mode, "history") {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket is required when the archive is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region is required when the archive is enabled")
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	for _, e := range c.Notify.Events {
		if !validEvents[e] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q (valid: rotation, empty_pool, pool_changed)", e))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
