package cli

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
)

// chainGraph is 1 -> 2 -> 3 with every node deletable.
func chainGraph() ([]flow.Node, []flow.Edge) {
	nodes := []flow.Node{
		{ID: "1", Deletable: true},
		{ID: "2", Deletable: true},
		{ID: "3", Deletable: true},
	}
	edges := []flow.Edge{
		{ID: flow.EdgeID("1", "2"), Source: "1", Target: "2"},
		{ID: flow.EdgeID("2", "3"), Source: "2", Target: "3"},
	}
	return nodes, edges
}

func TestParseConnection(t *testing.T) {
	tests := []struct {
		in      string
		source  string
		target  string
		wantErr bool
	}{
		{"a:b", "a", "b", false},
		{"node-1:node-2", "node-1", "node-2", false},
		{"a", "", "", true},
		{":b", "", "", true},
		{"a:", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseConnection(tt.in)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidInput) {
					t.Fatalf("parseConnection(%q) error = %v, want INVALID_INPUT", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseConnection(%q) error: %v", tt.in, err)
			}
			if got.Source != tt.source || got.Target != tt.target {
				t.Errorf("parseConnection(%q) = %+v", tt.in, got)
			}
		})
	}
}

func TestPreviewDeleteBridgesChain(t *testing.T) {
	nodes, edges := chainGraph()

	p := previewDelete([]string{"2", "missing"}, nodes, edges)

	if diff := cmp.Diff([]string{"2"}, p.Removed); diff != "" {
		t.Errorf("Removed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"missing"}, p.Skipped); diff != "" {
		t.Errorf("Skipped mismatch (-want +got):\n%s", diff)
	}
	if len(p.Dropped) != 2 {
		t.Errorf("Dropped = %v, want both edges touching 2", p.Dropped)
	}
	if len(p.Bridges) != 1 || p.Bridges[0].Source != "1" || p.Bridges[0].Target != "3" {
		t.Errorf("Bridges = %v, want 1->3", p.Bridges)
	}
}

func TestPreviewDeleteKeepsLockedNodes(t *testing.T) {
	nodes, edges := chainGraph()
	nodes[1].Deletable = false

	p := previewDelete([]string{"2"}, nodes, edges)

	if len(p.Removed) != 0 || len(p.Bridges) != 0 || len(p.Dropped) != 0 {
		t.Errorf("preview = %+v, want nothing removed", p)
	}
	if diff := cmp.Diff([]string{"2"}, p.Skipped); diff != "" {
		t.Errorf("Skipped mismatch (-want +got):\n%s", diff)
	}
}
