package journal

import (
	"context"
	"fmt"
)

// Backend names accepted by [Open].
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Backends lists the accepted backend names.
var Backends = []string{BackendNone, BackendMemory, BackendFile, BackendMongo, BackendPostgres}

// Options selects and configures a journal backend.
type Options struct {
	Backend string `toml:"backend"`
	// Path is the directory of the file backend.
	Path string `toml:"path"`
	// PostgresURL is the connection string of the postgres backend.
	PostgresURL string      `toml:"postgres_url"`
	Mongo       MongoConfig `toml:"mongo"`
}

// Open creates the backend named by opts.Backend. An empty name means none.
func Open(ctx context.Context, opts Options) (Journal, error) {
	switch opts.Backend {
	case "", BackendNone:
		return NullJournal{}, nil
	case BackendMemory:
		return NewMemoryJournal(), nil
	case BackendFile:
		return NewFileJournal(opts.Path)
	case BackendMongo:
		return NewMongoJournal(ctx, opts.Mongo)
	case BackendPostgres:
		return NewPostgresJournal(ctx, opts.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", opts.Backend)
	}
}
