package session

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// NewID is the id that asks [Registry.Open] for a fresh session.
const NewID = "new"

// Registry tracks live sessions. It is safe for concurrent use.
type Registry struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
	refs     map[string]int
}

// NewRegistry creates a registry whose sessions share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, sessions: make(map[string]*Session), refs: make(map[string]int)}
}

// Open returns the live session id. An empty id or [NewID] creates a
// session with a fresh UUID. An unknown id creates a session under that id
// and restores its persisted graph when snapshots are persisted.
func (r *Registry) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" || id == NewID {
		id = uuid.NewString()
	}

	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return s, nil
	}
	s := New(id, r.opts)
	r.sessions[id] = s
	r.mu.Unlock()

	if r.opts.PersistSnapshots {
		if _, err := s.Restore(ctx); err != nil {
			s.logger.Warn("restore session", "err", err)
		}
	}
	return s, nil
}

// Acquire opens the session like [Registry.Open] and holds it for one
// connection. The returned release drops that hold; when the last holder of a
// session releases it, the session is removed and closed. A later Acquire of
// the same id starts a new session, restored from the persisted snapshot when
// snapshots are persisted.
func (r *Registry) Acquire(ctx context.Context, id string) (*Session, func(), error) {
	s, err := r.Open(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	r.refs[s.ID()]++
	r.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { r.release(s) })
	}
	return s, release, nil
}

func (r *Registry) release(s *Session) {
	id := s.ID()
	r.mu.Lock()
	r.refs[id]--
	if r.refs[id] > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.refs, id)
	// Only forget the entry if it is still this session; a Remove followed
	// by a fresh Open may have replaced it.
	if r.sessions[id] == s {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	s.Close()
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// IDs returns the sorted ids of live sessions.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	delete(r.refs, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.refs = make(map[string]int)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
