package flow

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// equateEmpty makes a nil slice or map equal to an empty one, so a snapshot
// decoded from "edges": [] matches a committed nil edge list.
var equateEmpty = cmpopts.EquateEmpty()

// Equal reports whether two graphs are deeply equal.
func Equal(nodesA []Node, edgesA []Edge, nodesB []Node, edgesB []Edge) bool {
	return cmp.Equal(nodesA, nodesB, equateEmpty) && cmp.Equal(edgesA, edgesB, equateEmpty)
}

// Diff returns a human-readable description of how graph B differs from A,
// or "" when they are equal. Used for debug logging.
func Diff(nodesA []Node, edgesA []Edge, nodesB []Node, edgesB []Edge) string {
	return cmp.Diff(nodesA, nodesB, equateEmpty) + cmp.Diff(edgesA, edgesB, equateEmpty)
}

// Clone returns deep copies of nodes and edges. Data payloads are copied
// recursively through nested maps and slices.
func Clone(nodes []Node, edges []Edge) ([]Node, []Edge) {
	return CloneNodes(nodes), CloneEdges(edges)
}

// CloneNodes deep-copies a node slice. A nil input yields nil.
func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Data = cloneMap(n.Data)
	}
	return out
}

// CloneEdges copies an edge slice. A nil input yields nil.
func CloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
