package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns defaults patched with the fields that have no sensible
// default (addresses and the genesis price list).
func validConfig() Config {
	cfg := Defaults()
	cfg.Genesis.Beneficiary = "0x00000000000000000000000000000000000000a2"
	cfg.Genesis.Admin = "0x00000000000000000000000000000000000000d1"
	cfg.Genesis.Deployer = "0x00000000000000000000000000000000000000d1"
	cfg.Genesis.Prices = []string{"1000000000000000000", "2000000000000000000"}
	return cfg
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "cluster"
	cfg.Genesis.Admin = "not-an-address"
	cfg.Genesis.Prices = []string{"-1"}
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"unknown mode", "admin", "price 0", "redis"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_S3OnlyRequiredWhenArchiving(t *testing.T) {
	cfg := validConfig()
	cfg.S3.Endpoint = ""
	cfg.S3.Bucket = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("archive disabled should not require s3: %v", err)
	}

	cfg.Archive.Enabled = true
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "s3") {
		t.Fatalf("archive enabled without s3 passed validation: %v", err)
	}
}

func TestWei(t *testing.T) {
	n, err := Wei(" 10000000000000000 ")
	if err != nil {
		t.Fatalf("wei: %v", err)
	}
	if n.String() != "10000000000000000" {
		t.Fatalf("wei = %s", n)
	}

	for _, bad := range []string{"", "1.5", "0x10", "one"} {
		if _, err := Wei(bad); err == nil {
			t.Errorf("Wei(%q) accepted", bad)
		}
	}
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	toml := `
mode = "full"
log_level = "debug"

[genesis]
beneficiary = "0x00000000000000000000000000000000000000a2"
admin = "0x00000000000000000000000000000000000000d1"
deployer = "0x00000000000000000000000000000000000000d1"
prices = ["1000000000000000000"]

[server]
port = 9090
rate_limit_per_min = 120

[archive]
interval = "6h"
`
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != "full" || cfg.LogLevel != "debug" {
		t.Fatalf("mode=%q log_level=%q", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Server.Port != 9090 || cfg.Server.RateLimitPerMin != 120 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Archive.Interval.Duration != 6*time.Hour {
		t.Fatalf("interval = %s", cfg.Archive.Interval.Duration)
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Port != 5432 || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("defaults lost: db=%+v redis=%+v", cfg.Database, cfg.Redis)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate loaded config: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETD_MODE", "archive")
	t.Setenv("MARKETD_DATABASE_PASSWORD", "s3cret")
	t.Setenv("MARKETD_SERVER_RATE_LIMIT_PER_MIN", "60")
	t.Setenv("MARKETD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MARKETD_ARCHIVE_INTERVAL", "90m")
	t.Setenv("MARKETD_REDIS_TLS_ENABLED", "true")

	cfg := validConfig()
	applyEnvOverrides(&cfg)

	if cfg.Mode != "archive" {
		t.Fatalf("mode = %q", cfg.Mode)
	}
	if cfg.Database.Password != "s3cret" {
		t.Fatalf("password not overridden")
	}
	if cfg.Server.RateLimitPerMin != 60 {
		t.Fatalf("rate limit = %d", cfg.Server.RateLimitPerMin)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Fatalf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Archive.Interval.Duration != 90*time.Minute {
		t.Fatalf("interval = %s", cfg.Archive.Interval.Duration)
	}
	if !cfg.Redis.TLSEnabled {
		t.Fatal("redis tls not overridden")
	}
}

func TestEnvOverrides_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("MARKETD_SERVER_PORT", "not-a-number")
	t.Setenv("MARKETD_ARCHIVE_ENABLED", "maybe")

	cfg := validConfig()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 8000 {
		t.Fatalf("port = %d, want default", cfg.Server.Port)
	}
	if cfg.Archive.Enabled {
		t.Fatal("archive enabled by malformed bool")
	}
}
