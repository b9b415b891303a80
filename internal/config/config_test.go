package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Realtime.Retries != 3 || cfg.Coop.InactivityThreshold != "5m" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
server:
  port: "9090"
redis:
  addr: "file:6379"
coop:
  sweepInterval: 30s
realtime:
  allowedOrigins: ["https://medy.app"]
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port from file, got %s", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "env:6379" || cfg.Log.Level != "debug" {
		t.Fatalf("expected env overrides, got %s %s", cfg.Redis.Addr, cfg.Log.Level)
	}
	if cfg.Coop.SampleCacheTTL != "60s" {
		t.Fatalf("expected untouched default, got %s", cfg.Coop.SampleCacheTTL)
	}
	if TTLDuration(cfg.Coop.SweepInterval, time.Minute) != 30*time.Second {
		t.Fatalf("expected 30s sweep interval")
	}
	if len(cfg.Realtime.AllowedOrigins) != 1 {
		t.Fatalf("expected one origin, got %v", cfg.Realtime.AllowedOrigins)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [oops"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if TTLDuration("", time.Second) != time.Second || TTLDuration("nope", time.Second) != time.Second {
		t.Fatalf("expected fallback")
	}
	if TTLDuration("250ms", time.Second) != 250*time.Millisecond {
		t.Fatalf("expected parsed value")
	}
}
