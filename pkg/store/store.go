// Package store holds the committed graph of an editor session.
//
// The store is the only mutable resource shared between the reconciler, the
// layout orchestrator and the bridge. Writers swap whole collections through
// [Store.Replace] or [Store.ReplaceIf]; readers receive deep copies from
// [Store.Current], so no reader ever observes a partial write.
//
// Every commit advances a version counter. The layout orchestrator records the
// version its input was taken at and commits with [Store.ReplaceIf], which
// refuses the write if anything else committed in the meantime.
package store

import (
	"sync"

	"github.com/flowco/flowsync/pkg/flow"
)

// View is an immutable copy of the committed graph.
type View struct {
	Nodes   []flow.Node
	Edges   []flow.Edge
	Version uint64
}

// Store is a copy-on-write holder of the committed node and edge collections.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	nodes   []flow.Node
	edges   []flow.Edge
	version uint64
}

// New creates a store with an initial graph. The arguments are copied.
func New(nodes []flow.Node, edges []flow.Edge) *Store {
	s := &Store{}
	s.nodes, s.edges = flow.Clone(nodes, edges)
	return s
}

// Current returns a deep copy of the committed graph and its version.
func (s *Store) Current() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes, edges := flow.Clone(s.nodes, s.edges)
	return View{Nodes: nodes, Edges: edges, Version: s.version}
}

// Version returns the number of commits so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of committed nodes and edges.
func (s *Store) Len() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// Replace atomically swaps the committed graph and returns the new version.
// The arguments are copied; callers may keep mutating their slices.
func (s *Store) Replace(nodes []flow.Node, edges []flow.Edge) uint64 {
	n, e := flow.Clone(nodes, edges)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes, s.edges = n, e
	s.version++
	return s.version
}

// ReplaceIf commits only when the store is still at version. It reports
// whether the commit happened and the version after the call.
func (s *Store) ReplaceIf(version uint64, nodes []flow.Node, edges []flow.Edge) (bool, uint64) {
	n, e := flow.Clone(nodes, edges)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return false, s.version
	}
	s.nodes, s.edges = n, e
	s.version++
	return true, s.version
}

// Changed reports whether the given graph differs from the committed one.
// The comparison runs against the committed reference without copying it.
func (s *Store) Changed(nodes []flow.Node, edges []flow.Edge) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !flow.Equal(s.nodes, s.edges, nodes, edges)
}

// Node returns a copy of the committed node with the given id.
func (s *Store) Node(id string) (flow.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, _, ok := flow.NodeByID(s.nodes, id)
	if !ok {
		return flow.Node{}, false
	}
	return flow.CloneNodes([]flow.Node{n})[0], true
}
