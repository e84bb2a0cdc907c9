package rewire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/flowco/flowsync/pkg/flow"
)

var sortEdges = cmpopts.SortSlices(func(a, b flow.Edge) bool { return a.ID < b.ID })

func node(id string) flow.Node { return flow.Node{ID: id, Deletable: true} }

func edge(s, t string) flow.Edge { return flow.Edge{ID: s + t, Source: s, Target: t} }

func TestOnNodesDeleted(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []flow.Node
		edges   []flow.Edge
		deleted []string
		want    []flow.Edge
	}{
		{
			name:    "chain middle",
			nodes:   []flow.Node{node("1"), node("2"), node("3")},
			edges:   []flow.Edge{{ID: "e1", Source: "1", Target: "2"}, {ID: "e2", Source: "2", Target: "3"}},
			deleted: []string{"2"},
			want:    []flow.Edge{{ID: "1->3", Source: "1", Target: "3"}},
		},
		{
			name:    "fan in fan out cross product",
			nodes:   []flow.Node{node("a"), node("b"), node("m"), node("x"), node("y")},
			edges:   []flow.Edge{edge("a", "m"), edge("b", "m"), edge("m", "x"), edge("m", "y")},
			deleted: []string{"m"},
			want: []flow.Edge{
				{ID: "a->x", Source: "a", Target: "x"},
				{ID: "a->y", Source: "a", Target: "y"},
				{ID: "b->x", Source: "b", Target: "x"},
				{ID: "b->y", Source: "b", Target: "y"},
			},
		},
		{
			name:    "leaf has no bridge",
			nodes:   []flow.Node{node("a"), node("b")},
			edges:   []flow.Edge{edge("a", "b")},
			deleted: []string{"b"},
			want:    []flow.Edge{},
		},
		{
			name:    "chained deletions compose",
			nodes:   []flow.Node{node("a"), node("b"), node("c"), node("d")},
			edges:   []flow.Edge{edge("a", "b"), edge("b", "c"), edge("c", "d")},
			deleted: []string{"b", "c"},
			want:    []flow.Edge{{ID: "a->d", Source: "a", Target: "d"}},
		},
		{
			name:    "unrelated edges survive",
			nodes:   []flow.Node{node("a"), node("b"), node("c"), node("z")},
			edges:   []flow.Edge{edge("a", "b"), edge("b", "c"), edge("a", "z")},
			deleted: []string{"b"},
			want:    []flow.Edge{edge("a", "z"), {ID: "a->c", Source: "a", Target: "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deleted []flow.Node
			for _, id := range tt.deleted {
				n, _, _ := flow.NodeByID(tt.nodes, id)
				deleted = append(deleted, n)
			}
			got := OnNodesDeleted(deleted, tt.nodes, tt.edges)
			if diff := cmp.Diff(tt.want, got, sortEdges, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("OnNodesDeleted() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOnNodesDeletedDoesNotMutateInput(t *testing.T) {
	nodes := []flow.Node{node("1"), node("2"), node("3")}
	edges := []flow.Edge{edge("1", "2"), edge("2", "3")}
	before := flow.CloneEdges(edges)

	OnNodesDeleted([]flow.Node{nodes[1]}, nodes, edges)

	if !cmp.Equal(before, edges) {
		t.Errorf("input edges mutated: %v", edges)
	}
}

// Bridge edges are not re-validated: deleting m from a->m->b while a->b
// already exists produces a second a->b edge. This pins the known gap.
func TestBridgeEdgesAreNotDeduplicated(t *testing.T) {
	nodes := []flow.Node{node("a"), node("m"), node("b")}
	edges := []flow.Edge{edge("a", "m"), edge("m", "b"), edge("a", "b")}

	got := OnNodesDeleted([]flow.Node{nodes[1]}, nodes, edges)

	count := 0
	for _, e := range got {
		if e.Source == "a" && e.Target == "b" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("a->b edges = %d, want 2 (bridge kept alongside existing edge)", count)
	}
}

func TestDeleteNodesSkipsUndeletable(t *testing.T) {
	nodes := []flow.Node{node("1"), {ID: "2"}, node("3")}
	edges := []flow.Edge{edge("1", "2"), edge("2", "3")}

	kept, rewired, removed := DeleteNodes([]string{"2", "missing"}, nodes, edges)
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none (node 2 is not deletable)", removed)
	}
	if len(kept) != 3 || len(rewired) != 2 {
		t.Errorf("graph changed: kept %d nodes, %d edges", len(kept), len(rewired))
	}

	kept, rewired, removed = DeleteNodes([]string{"3"}, nodes, edges)
	if len(removed) != 1 || len(kept) != 2 {
		t.Fatalf("removed %v kept %v", removed, kept)
	}
	if diff := cmp.Diff([]flow.Edge{edge("1", "2")}, rewired); diff != "" {
		t.Errorf("rewired mismatch (-want +got):\n%s", diff)
	}
}
