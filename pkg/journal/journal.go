// Package journal records emitted envelopes so a session's history can be
// listed or replayed after the fact.
//
// A [Journal] is plugged into an emitter as a sink with [Sink]. Backends:
//   - [MemoryJournal]: in-process, for tests and single-shot runs
//   - [FileJournal]: one JSON Lines file per session, for the CLI
//   - [MongoJournal]: a MongoDB collection, for shared deployments
//   - [PostgresJournal]: a PostgreSQL table holding JSONB envelopes
//
// # Usage
//
//	j, err := journal.Open(ctx, journal.Options{Backend: "file", Path: dir})
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
//	em := emit.New(nil, logger, journal.Sink(j))
package journal

import (
	"context"
	"errors"
	"slices"
	"sort"

	"github.com/flowco/flowsync/pkg/emit"
	"github.com/flowco/flowsync/pkg/flow"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal closed")

// Query selects envelopes from a journal.
type Query struct {
	// Session restricts results to one session. Empty means all sessions.
	Session string
	// Since is an exclusive lower bound on the envelope timestamp.
	Since int64
	// Limit keeps only the most recent envelopes. Zero means no limit.
	Limit int
}

// Journal is an append-only log of envelopes.
type Journal interface {
	// Append records env.
	Append(ctx context.Context, env flow.Envelope) error

	// List returns the envelopes matching q in ascending timestamp order.
	List(ctx context.Context, q Query) ([]flow.Envelope, error)

	// Sessions returns the distinct session ids present, sorted.
	Sessions(ctx context.Context) ([]string, error)

	// Close releases resources held by the journal.
	Close() error
}

// Sink adapts j to an emitter sink.
func Sink(j Journal) emit.Sink {
	return emit.SinkFunc(j.Append)
}

// filter applies q to envs, which need not be sorted.
func filter(envs []flow.Envelope, q Query) []flow.Envelope {
	out := make([]flow.Envelope, 0, len(envs))
	for _, env := range envs {
		if q.Session != "" && env.Session != q.Session {
			continue
		}
		if env.Timestamp <= q.Since {
			continue
		}
		out = append(out, env)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

// sessionsOf returns the sorted distinct sessions of envs.
func sessionsOf(envs []flow.Envelope) []string {
	seen := make(map[string]bool)
	var out []string
	for _, env := range envs {
		if !seen[env.Session] {
			seen[env.Session] = true
			out = append(out, env.Session)
		}
	}
	slices.Sort(out)
	return out
}
