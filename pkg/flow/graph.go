package flow

import (
	"slices"
)

// EdgeID returns the id given to an edge created by a connect gesture.
func EdgeID(source, target string) string {
	return "st-flow-edge_" + source + "-" + target
}

// BridgeEdgeID returns the id given to an edge synthesized by deletion rewiring.
func BridgeEdgeID(source, target string) string {
	return source + "->" + target
}

// NodeByID returns the node with the given id and its index, or false.
func NodeByID(nodes []Node, id string) (Node, int, bool) {
	for i, n := range nodes {
		if n.ID == id {
			return n, i, true
		}
	}
	return Node{}, -1, false
}

// EdgeByID returns the edge with the given id and its index, or false.
func EdgeByID(edges []Edge, id string) (Edge, int, bool) {
	for i, e := range edges {
		if e.ID == id {
			return e, i, true
		}
	}
	return Edge{}, -1, false
}

// HasEdge reports whether an edge source→target exists.
func HasEdge(edges []Edge, source, target string) bool {
	return slices.ContainsFunc(edges, func(e Edge) bool {
		return e.Source == source && e.Target == target
	})
}

// Incomers returns the nodes with an edge into id, in node order.
func Incomers(id string, nodes []Node, edges []Edge) []Node {
	ids := make(map[string]bool)
	for _, e := range edges {
		if e.Target == id {
			ids[e.Source] = true
		}
	}
	return filterNodes(nodes, ids)
}

// Outgoers returns the nodes id has an edge to, in node order.
func Outgoers(id string, nodes []Node, edges []Edge) []Node {
	ids := make(map[string]bool)
	for _, e := range edges {
		if e.Source == id {
			ids[e.Target] = true
		}
	}
	return filterNodes(nodes, ids)
}

func filterNodes(nodes []Node, ids map[string]bool) []Node {
	if len(ids) == 0 {
		return nil
	}
	var out []Node
	for _, n := range nodes {
		if ids[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// ConnectedEdges returns the edges touching any of the given node ids.
func ConnectedEdges(ids []string, edges []Edge) []Edge {
	var out []Edge
	for _, e := range edges {
		if slices.Contains(ids, e.Source) || slices.Contains(ids, e.Target) {
			out = append(out, e)
		}
	}
	return out
}

// SelectedNodeID returns the id of the first selected node, or nil.
func SelectedNodeID(nodes []Node) *string {
	for _, n := range nodes {
		if n.Selected {
			return Ref(n.ID)
		}
	}
	return nil
}

// Index is a read-only adjacency index over a node/edge collection.
// Edges whose endpoints are not in the node set are skipped.
type Index struct {
	order    []string
	nodes    map[string]Node
	outgoing map[string][]string
	incoming map[string][]string
}

// NewIndex builds an adjacency index. Edge order is preserved per node.
func NewIndex(nodes []Node, edges []Edge) *Index {
	idx := &Index{
		order:    make([]string, 0, len(nodes)),
		nodes:    make(map[string]Node, len(nodes)),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
	for _, n := range nodes {
		if _, dup := idx.nodes[n.ID]; dup {
			continue
		}
		idx.order = append(idx.order, n.ID)
		idx.nodes[n.ID] = n
	}
	for _, e := range edges {
		if !idx.Has(e.Source) || !idx.Has(e.Target) {
			continue
		}
		idx.outgoing[e.Source] = append(idx.outgoing[e.Source], e.Target)
		idx.incoming[e.Target] = append(idx.incoming[e.Target], e.Source)
	}
	return idx
}

// Has reports whether id is a node of the index.
func (x *Index) Has(id string) bool {
	_, ok := x.nodes[id]
	return ok
}

// Node returns the node with the given id.
func (x *Index) Node(id string) (Node, bool) {
	n, ok := x.nodes[id]
	return n, ok
}

// IDs returns node ids in their original order.
func (x *Index) IDs() []string { return x.order }

// Children returns the targets of id's outgoing edges. Do not modify.
func (x *Index) Children(id string) []string { return x.outgoing[id] }

// Parents returns the sources of id's incoming edges. Do not modify.
func (x *Index) Parents(id string) []string { return x.incoming[id] }

// InDegree returns the number of incoming edges of id.
func (x *Index) InDegree(id string) int { return len(x.incoming[id]) }

// Len returns the number of nodes.
func (x *Index) Len() int { return len(x.order) }
