package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/flowco/flowsync/pkg/cache"
	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/journal"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Server.PingInterval.Duration != DefaultPingInterval {
		t.Errorf("PingInterval = %v, want %v", cfg.Server.PingInterval, DefaultPingInterval)
	}
	wantCache := cache.Options{Backend: cache.BackendFile, Dir: filepath.Join(dir, "cache", AppName)}
	if diff := cmp.Diff(wantCache, cfg.Cache); diff != "" {
		t.Errorf("Cache mismatch (-want +got):\n%s", diff)
	}
	wantJournal := filepath.Join(dir, "data", AppName, "journal")
	if cfg.Journal.Backend != journal.BackendFile || cfg.Journal.Path != wantJournal {
		t.Errorf("Journal = %+v, want file at %s", cfg.Journal, wantJournal)
	}
	if cfg.LogLevel() != log.InfoLevel {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel())
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Load(missing) = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
[server]
addr = ":9000"
ping_interval = "5s"
allowed_origins = ["http://localhost:8501"]

[layout]
strategy = "force"
direction = "right"
iterations = 50

[cache]
backend = "redis"

[cache.redis]
addr = "localhost:6379"
prefix = "flowsync:"

[journal]
backend = "memory"

[log]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.PingInterval.Duration != 5*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if diff := cmp.Diff([]string{"http://localhost:8501"}, cfg.Server.AllowedOrigins); diff != "" {
		t.Errorf("AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Layout.Strategy != "force" || cfg.Layout.Iterations != 50 {
		t.Errorf("Layout = %+v", cfg.Layout)
	}
	// Unset keys keep their defaults.
	if cfg.Layout.NodeNodeSpacing != Default().Layout.NodeNodeSpacing {
		t.Errorf("NodeNodeSpacing = %v, want default", cfg.Layout.NodeNodeSpacing)
	}
	if cfg.Cache.Backend != cache.BackendRedis || cfg.Cache.Redis.Addr != "localhost:6379" || cfg.Cache.Redis.Prefix != "flowsync:" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Journal.Backend != journal.BackendMemory {
		t.Errorf("Journal.Backend = %q, want memory", cfg.Journal.Backend)
	}
	if cfg.LogLevel() != log.DebugLevel {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "[server]\nadress = \":9000\"\n")
	_, err := Load(path)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("Load = %v, want INVALID_CONFIG", err)
	}
	if !strings.Contains(err.Error(), "server.adress") {
		t.Errorf("error %q does not name the unknown key", err)
	}
}

func TestValidate(t *testing.T) {
	isolate(t)
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative ping", func(c *Config) { c.Server.PingInterval.Duration = -time.Second }, "ping_interval"},
		{"bad strategy", func(c *Config) { c.Layout.Strategy = "spiral" }, "strategy"},
		{"bad direction", func(c *Config) { c.Layout.Direction = "NORTH" }, "direction"},
		{"negative spacing", func(c *Config) { c.Layout.NodeNodeSpacing = -1 }, "spacing"},
		{"file cache without dir", func(c *Config) { c.Cache = cache.Options{Backend: cache.BackendFile} }, "cache.dir"},
		{"redis without addr", func(c *Config) { c.Cache = cache.Options{Backend: cache.BackendRedis} }, "cache.redis.addr"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"mongo without uri", func(c *Config) { c.Journal = journal.Options{Backend: journal.BackendMongo} }, "journal.mongo.uri"},
		{"postgres without url", func(c *Config) { c.Journal = journal.Options{Backend: journal.BackendPostgres} }, "postgres_url"},
		{"unknown journal", func(c *Config) { c.Journal.Backend = "kafka" }, "journal.backend"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Fatalf("Validate() = %v, want INVALID_CONFIG", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	isolate(t)
	want := Default()
	want.Server.AllowedOrigins = []string{"https://example.com"}
	want.Layout.Strategy = "tree"

	var buf bytes.Buffer
	if err := want.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(buf.String(), `ping_interval = "30s"`) {
		t.Errorf("encoded config missing ping_interval:\n%s", buf.String())
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode/Decode mismatch (-want +got):\n%s", diff)
	}
}
