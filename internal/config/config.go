package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		Retention string `yaml:"retention"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Coop struct {
		SampleCacheTTL      string `yaml:"sampleCacheTTL"`
		SweepInterval       string `yaml:"sweepInterval"`
		InactivityThreshold string `yaml:"inactivityThreshold"`
	} `yaml:"coop"`
	Realtime struct {
		ThrottleWindow string   `yaml:"throttleWindow"`
		Retries        int      `yaml:"retries"`
		RetryBase      string   `yaml:"retryBase"`
		Heartbeat      string   `yaml:"heartbeat"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"realtime"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Redis.Retention = "1h"
	cfg.Coop.SampleCacheTTL = "60s"
	cfg.Coop.SweepInterval = "60s"
	cfg.Coop.InactivityThreshold = "5m"
	cfg.Realtime.ThrottleWindow = "10s"
	cfg.Realtime.Retries = 3
	cfg.Realtime.RetryBase = "100ms"
	cfg.Realtime.Heartbeat = "30s"
	return cfg
}

// Load reads YAML config from path on top of Defaults, then applies env overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Realtime.AllowedOrigins = parseOrigins(v)
	}
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
func parseOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
