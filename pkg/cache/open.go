package cache

import (
	"context"
	"fmt"
)

// Backend names accepted by [Open].
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Options selects and configures a cache backend.
type Options struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	// KeyPrefix scopes every key so several deployments can share a backend.
	KeyPrefix string      `toml:"key_prefix"`
	Redis     RedisConfig `toml:"redis"`
}

// Keyer returns the keyer for these options: the default keyer, scoped by
// KeyPrefix when one is set.
func (o Options) Keyer() Keyer {
	if o.KeyPrefix == "" {
		return NewDefaultKeyer()
	}
	return NewScopedKeyer(nil, o.KeyPrefix)
}

// Open creates the backend named by opts.Backend. An empty name means memory.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case BackendNone:
		return NewNullCache(), nil
	case "", BackendMemory:
		return NewMemoryCache(), nil
	case BackendFile:
		if opts.Dir == "" {
			return nil, fmt.Errorf("file cache: no directory configured")
		}
		return NewFileCache(opts.Dir)
	case BackendRedis:
		return NewRedisCache(ctx, opts.Redis)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
