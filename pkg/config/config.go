// Package config loads the flowsync configuration file.
//
// The file is TOML. Every key is optional: values missing from the file keep
// the [Default] value, and unknown keys are rejected so that typos surface
// instead of being silently ignored.
//
//	[server]
//	addr = ":8765"
//	ping_interval = "30s"
//
//	[layout]
//	strategy = "tree"
//	direction = "RIGHT"
//
//	[cache]
//	backend = "redis"
//	redis.addr = "localhost:6379"
//
//	[journal]
//	backend = "postgres"
//	postgres_url = "postgres://localhost/flowsync"
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/flowco/flowsync/pkg/cache"
	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/journal"
	"github.com/flowco/flowsync/pkg/layout"
	"github.com/flowco/flowsync/pkg/menu"
)

// Default server values.
const (
	DefaultAddr         = "127.0.0.1:8765"
	DefaultPingInterval = 30 * time.Second
)

// Config is the complete configuration.
type Config struct {
	Server  ServerConfig        `toml:"server"`
	Layout  flow.LayoutSettings `toml:"layout"`
	Cache   cache.Options       `toml:"cache"`
	Journal journal.Options     `toml:"journal"`
	Log     LogConfig           `toml:"log"`
}

// ServerConfig configures the bridge served by `flowsync serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// PingInterval is the WebSocket keepalive period. Zero disables pings.
	PingInterval Duration `toml:"ping_interval"`
	// MenuMargin is the distance from the right/bottom pane edge at which
	// context menus flip their anchor.
	MenuMargin float64 `toml:"menu_margin"`
	// AllowedOrigins restricts WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string `toml:"allowed_origins"`
	// PersistSnapshots stores each session's last envelope in the cache so a
	// reconnecting host can resume.
	PersistSnapshots bool `toml:"persist_snapshots"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string ("30s", "1m") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration. File-backed stores live under
// the XDG cache and data directories; when the home directory cannot be
// resolved they fall back to in-memory backends.
func Default() Config {
	cfg := Config{
		Server: ServerConfig{
			Addr:         DefaultAddr,
			PingInterval: Duration{DefaultPingInterval},
			MenuMargin:   menu.DefaultMargin,
		},
		Layout: flow.LayoutSettings{
			Strategy:         string(layout.Layered),
			Direction:        string(layout.Down),
			NodeNodeSpacing:  layout.DefaultNodeSpacing,
			NodeLayerSpacing: layout.DefaultLayerSpacing,
			Iterations:       layout.DefaultIterations,
			Epsilon:          layout.DefaultEpsilon,
			SatellitePrefix:  flow.SatellitePrefix,
		},
		Cache:   cache.Options{Backend: cache.BackendMemory},
		Journal: journal.Options{Backend: journal.BackendNone},
		Log:     LogConfig{Level: "info"},
	}
	if dir, err := CacheDir(); err == nil {
		cfg.Cache = cache.Options{Backend: cache.BackendFile, Dir: dir}
	}
	if dir, err := DataDir(); err == nil {
		cfg.Journal = journal.Options{Backend: journal.BackendFile, Path: filepath.Join(dir, "journal")}
	}
	return cfg
}

// Load reads the configuration at path on top of [Default] and validates it.
// An empty path means [DefaultPath]; a missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, cfg.Validate()
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "load %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Decode parses TOML from r on top of [Default] without validating.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate reports every invalid setting in a single INVALID_CONFIG error.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr is empty")
	}
	if c.Server.PingInterval.Duration < 0 {
		add("server.ping_interval must not be negative")
	}
	if c.Server.MenuMargin < 0 {
		add("server.menu_margin must not be negative")
	}

	if _, _, err := layout.FromSettings(&c.Layout); err != nil {
		add("layout: %v", err)
	}
	if c.Layout.NodeNodeSpacing < 0 || c.Layout.NodeLayerSpacing < 0 {
		add("layout spacing must not be negative")
	}
	if c.Layout.Iterations < 0 {
		add("layout.iterations must not be negative")
	}
	if c.Layout.Epsilon < 0 {
		add("layout.epsilon must not be negative")
	}

	switch c.Cache.Backend {
	case "", cache.BackendNone, cache.BackendMemory:
	case cache.BackendFile:
		if c.Cache.Dir == "" {
			add("cache.dir is required for the file backend")
		}
	case cache.BackendRedis:
		if c.Cache.Redis.Addr == "" {
			add("cache.redis.addr is required for the redis backend")
		}
	default:
		add("unknown cache.backend %q", c.Cache.Backend)
	}

	switch c.Journal.Backend {
	case journal.BackendFile:
		if c.Journal.Path == "" {
			add("journal.path is required for the file backend")
		}
	case journal.BackendMongo:
		if c.Journal.Mongo.URI == "" {
			add("journal.mongo.uri is required for the mongo backend")
		}
	case journal.BackendPostgres:
		if c.Journal.PostgresURL == "" {
			add("journal.postgres_url is required for the postgres backend")
		}
	default:
		if c.Journal.Backend != "" && !slices.Contains(journal.Backends, c.Journal.Backend) {
			add("unknown journal.backend %q", c.Journal.Backend)
		}
	}

	if _, err := log.ParseLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		add("log.level: %v", err)
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.New(errors.ErrCodeInvalidConfig, "%s", strings.Join(problems, "; "))
}

// LogLevel returns the configured level, defaulting to info.
func (c Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil || c.Log.Level == "" {
		return log.InfoLevel
	}
	return lvl
}
