// Package validate decides whether a proposed edge may be added to a graph.
//
// A connection is legal when all of these hold:
//   - no edge with the same (source, target) pair exists;
//   - both endpoints exist;
//   - source and target differ;
//   - the target cannot already reach the source, so the edge closes no cycle.
//
// Acyclicity is enforced only here, at connection time. Cycles that arrive in
// a host snapshot are tolerated and never re-checked.
package validate

import (
	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
)

// Connection is a candidate edge produced by a drag-to-connect gesture.
type Connection struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// IsValidConnection reports whether c can be added without violating the
// structural invariants. It has no side effects.
func IsValidConnection(c Connection, nodes []flow.Node, edges []flow.Edge) bool {
	return Check(c, nodes, edges) == nil
}

// Check is IsValidConnection with the rejection reason. Rejections carry
// [errors.ErrCodeStructuralRejection] or [errors.ErrCodeMissingReference].
func Check(c Connection, nodes []flow.Node, edges []flow.Edge) error {
	if flow.HasEdge(edges, c.Source, c.Target) {
		return errors.New(errors.ErrCodeStructuralRejection, "edge %s->%s already exists", c.Source, c.Target)
	}

	idx := flow.NewIndex(nodes, edges)
	if !idx.Has(c.Source) {
		return errors.New(errors.ErrCodeMissingReference, "unknown source node %q", c.Source)
	}
	if !idx.Has(c.Target) {
		return errors.New(errors.ErrCodeMissingReference, "unknown target node %q", c.Target)
	}
	if c.Source == c.Target {
		return errors.New(errors.ErrCodeStructuralRejection, "self-loop on %s", c.Source)
	}
	if Reaches(idx, c.Target, c.Source) {
		return errors.New(errors.ErrCodeStructuralRejection, "edge %s->%s would close a cycle", c.Source, c.Target)
	}
	return nil
}

// Reaches reports whether to is reachable from from by following outgoing
// edges. The walk is an iterative depth-first search with an explicit stack,
// so stack depth does not grow with path length. O(V+E).
func Reaches(idx *flow.Index, from, to string) bool {
	visited := make(map[string]bool, idx.Len())
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, child := range idx.Children(cur) {
			if child == to {
				return true
			}
			if !visited[child] {
				stack = append(stack, child)
			}
		}
	}
	return false
}
