// Package cache stores computed layouts so that unchanged topologies are not
// laid out twice.
//
// A [Cache] is a byte-oriented key/value store with expirations. Backends:
//
//   - [NullCache] never stores anything (caching disabled).
//   - [MemoryCache] keeps entries in process memory.
//   - [FileCache] writes one JSON file per entry, for CLI use.
//   - [RedisCache] shares entries between serve instances.
//
// Keys are produced by a [Keyer] so that every backend sees the same layout
// key for the same graph and options.
package cache

import (
	"context"
	"time"
)

// Default time-to-live values.
const (
	TTLLayout   = 7 * 24 * time.Hour
	TTLSnapshot = 24 * time.Hour
)

// Cache is a key/value store with optional expiration.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	// A missing or expired key is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A non-positive ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend.
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// LayoutKeyOpts are the layout parameters that influence computed positions.
type LayoutKeyOpts struct {
	Strategy        string  `json:"strategy"`
	Direction       string  `json:"direction,omitempty"`
	NodeSpacing     float64 `json:"node_spacing,omitempty"`
	LayerSpacing    float64 `json:"layer_spacing,omitempty"`
	ModelOrder      bool    `json:"model_order,omitempty"`
	Iterations      int     `json:"iterations,omitempty"`
	Epsilon         float64 `json:"epsilon,omitempty"`
	SatellitePrefix string  `json:"satellite_prefix,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey is the key of a layout result for a graph hash and options.
	LayoutKey(graphHash string, opts LayoutKeyOpts) string

	// SnapshotKey is the key of the last envelope of an editor session.
	SnapshotKey(session string) string
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard Keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// LayoutKey returns "layout:<sha256>" over the graph hash and options.
func (DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", graphHash, opts)
}

// SnapshotKey returns "snapshot:<session>".
func (DefaultKeyer) SnapshotKey(session string) string {
	return "snapshot:" + session
}

var _ Keyer = DefaultKeyer{}
