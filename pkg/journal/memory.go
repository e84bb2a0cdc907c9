package journal

import (
	"context"
	"sync"

	"github.com/flowco/flowsync/pkg/flow"
)

// MemoryJournal keeps envelopes in memory.
type MemoryJournal struct {
	mu     sync.RWMutex
	envs   []flow.Envelope
	closed bool
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(ctx context.Context, env flow.Envelope) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	j.envs = append(j.envs, env)
	return nil
}

func (j *MemoryJournal) List(ctx context.Context, q Query) ([]flow.Envelope, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}
	return filter(j.envs, q), nil
}

func (j *MemoryJournal) Sessions(ctx context.Context) ([]string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}
	return sessionsOf(j.envs), nil
}

func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	j.envs = nil
	return nil
}

// NullJournal discards every envelope.
type NullJournal struct{}

func (NullJournal) Append(context.Context, flow.Envelope) error          { return nil }
func (NullJournal) List(context.Context, Query) ([]flow.Envelope, error) { return nil, nil }
func (NullJournal) Sessions(context.Context) ([]string, error)           { return nil, nil }
func (NullJournal) Close() error                                         { return nil }

var (
	_ Journal = (*MemoryJournal)(nil)
	_ Journal = NullJournal{}
)
