package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Market.RotationInterval() != 24*time.Hour || cfg.Market.ActiveCount != 3 {
		t.Fatalf("unexpected market defaults: %+v", cfg.Market)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Market.ActiveCount = 0
	cfg.Storage.Driver = "mongo"
	cfg.Notify.TelegramToken = "tok"
	cfg.Notify.Events = []string{"rotation", "order_filled"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		`unknown mode "trade"`,
		"active_count must be positive",
		`unknown driver "mongo"`,
		"telegram_token and telegram_chat_id",
		`unknown event "order_filled"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateDriverRequirements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"file path", func(c *Config) { c.Storage.Path = "" }, "storage: path is required"},
		{"sqlite path", func(c *Config) { c.Storage.Driver = "sqlite"; c.SQLite.Path = "" }, "sqlite: path is required"},
		{"postgres host", func(c *Config) { c.Storage.Driver = "postgres"; c.Postgres.Host = "" }, "postgres: dsn or host"},
		{"redis addr", func(c *Config) { c.Storage.Driver = "redis"; c.Redis.Addr = "" }, "redis: addr is required"},
		{"history needs bucket", func(c *Config) { c.Mode = "history"; c.S3.Bucket = "" }, "s3: bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	doc := `
mode = "status"

[market]
rotation_interval_hours = 12
status_interval = "30s"

[storage]
driver = "sqlite"

[messages]
purchase_success = "Enjoy!"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BLACKMARKET_MARKET_ACTIVE_COUNT", "5")
	t.Setenv("BLACKMARKET_REDIS_PASSWORD", "hunter2")
	t.Setenv("BLACKMARKET_NOTIFY_EVENTS", " rotation , pool_changed ,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "status" || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Market.RotationIntervalHours != 12 || cfg.Market.StatusInterval.Duration != 30*time.Second {
		t.Fatalf("market = %+v", cfg.Market)
	}
	if cfg.Market.ActiveCount != 5 {
		t.Fatalf("env override not applied: %d", cfg.Market.ActiveCount)
	}
	if cfg.Messages.PurchaseSuccess != "Enjoy!" || cfg.Messages.NotEnoughItems == "" {
		t.Fatalf("messages = %+v", cfg.Messages)
	}
	if len(cfg.Notify.Events) != 2 || cfg.Notify.Events[1] != "pool_changed" {
		t.Fatalf("events = %v", cfg.Notify.Events)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Fatal("redis password not applied")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "file" {
		t.Fatalf("expected defaults, got %+v", cfg.Storage)
	}
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("mode = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pw"
	cfg.S3.SecretKey = "secret"
	cfg.Notify.DiscordWebhookURL = "https://discord/hook"

	out := RedactedConfig(&cfg)
	if out.Postgres.Password != redacted || out.S3.SecretKey != redacted || out.Notify.DiscordWebhookURL != redacted {
		t.Fatalf("secrets not redacted: %+v", out)
	}
	if out.Postgres.DSN != "" {
		t.Fatal("empty secrets should stay empty")
	}
	if cfg.Postgres.Password != "pw" {
		t.Fatal("original mutated")
	}
	out.Notify.Events[0] = "changed"
	if cfg.Notify.Events[0] == "changed" {
		t.Fatal("events slice shared with original")
	}
}
