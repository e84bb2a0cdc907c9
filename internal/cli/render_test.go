package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty defaults to svg", "", []string{"svg"}},
		{"single format", "dot", []string{"dot"}},
		{"multiple formats", "svg,pdf,png", []string{"svg", "pdf", "png"}},
		{"spaces and case", " SVG , Dot", []string{"svg", "dot"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, parseFormats(tt.input)); diff != "" {
				t.Errorf("parseFormats(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestValidateFormats(t *testing.T) {
	tests := []struct {
		name    string
		formats []string
		wantErr bool
	}{
		{"valid svg", []string{"svg"}, false},
		{"valid dot", []string{"dot"}, false},
		{"valid all", []string{"dot", "svg", "pdf", "png"}, false},
		{"json is not an export format", []string{"json"}, true},
		{"mixed valid invalid", []string{"svg", "invalid"}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFormats(tt.formats)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFormats(%v) error = %v, wantErr %v", tt.formats, err, tt.wantErr)
			}
		})
	}
}

func TestRankdir(t *testing.T) {
	tests := []struct {
		direction string
		want      string
		wantErr   bool
	}{
		{"", "TB", false},
		{"DOWN", "TB", false},
		{"UP", "BT", false},
		{"RIGHT", "LR", false},
		{"LEFT", "RL", false},
		{"DIAGONAL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.direction, func(t *testing.T) {
			got, err := rankdir(tt.direction)
			if (err != nil) != tt.wantErr {
				t.Fatalf("rankdir(%q) error = %v, wantErr %v", tt.direction, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("rankdir(%q) = %q, want %q", tt.direction, got, tt.want)
			}
		})
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, input, want string
	}{
		{"", "graph.json", "graph"},
		{"", "dir/graph.layout.json", "dir/graph.layout"},
		{"out.svg", "graph.json", "out"},
		{"out.dot", "graph.json", "out"},
		{"out", "graph.json", "out"},
		{"out.txt", "graph.json", "out.txt"},
	}

	for _, tt := range tests {
		if got := basePath(tt.output, tt.input); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
		}
	}
}

func TestRenderFormatDOT(t *testing.T) {
	dot := "digraph G {\n  \"a\" -> \"b\";\n}\n"
	got, err := renderFormat(context.Background(), dot, formatDOT, 1)
	if err != nil {
		t.Fatalf("renderFormat() error: %v", err)
	}
	if string(got) != dot {
		t.Errorf("renderFormat(dot) = %q, want the DOT source unchanged", got)
	}
}

func TestRenderFormatSVG(t *testing.T) {
	dot := "digraph G {\n  \"a\" -> \"b\";\n}\n"
	got, err := renderFormat(context.Background(), dot, formatSVG, 1)
	if err != nil {
		t.Fatalf("renderFormat() error: %v", err)
	}
	if !strings.Contains(string(got), "<svg") {
		t.Errorf("renderFormat(svg) did not produce an svg element")
	}
}
