package layout

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	ferrors "github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
)

func chainGraph(ids ...string) ([]flow.Node, []flow.Edge) {
	nodes := make([]flow.Node, len(ids))
	var edges []flow.Edge
	for i, id := range ids {
		nodes[i] = flow.Node{ID: id}
		if i > 0 {
			edges = append(edges, flow.Edge{ID: ids[i-1] + id, Source: ids[i-1], Target: id})
		}
	}
	return nodes, edges
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
		ok   bool
	}{
		{"", Layered, true},
		{"Tree", Tree, true},
		{"force", Force, true},
		{"spiral", "", false},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFromSettings(t *testing.T) {
	off := false
	strategy, opts, err := FromSettings(&flow.LayoutSettings{
		Strategy:           "tree",
		Direction:          "right",
		NodeNodeSpacing:    20,
		ConsiderModelOrder: &off,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strategy != Tree || opts.Direction != Right || opts.NodeSpacing != 20 || opts.ModelOrder {
		t.Errorf("FromSettings = %s %+v", strategy, opts)
	}
	if opts.LayerSpacing != DefaultLayerSpacing || opts.Iterations != DefaultIterations {
		t.Errorf("defaults not kept: %+v", opts)
	}

	if _, _, err := FromSettings(&flow.LayoutSettings{Direction: "diagonal"}); err == nil {
		t.Error("bad direction accepted")
	}
}

func TestTreeParentsAboveChildren(t *testing.T) {
	nodes, edges := chainGraph("a", "b", "c")
	nodes = append(nodes, flow.Node{ID: "d"})
	edges = append(edges, flow.Edge{ID: "ad", Source: "a", Target: "d"})

	res, err := Layout(context.Background(), nodes, edges, Tree, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range edges {
		s, t2 := res.Positions[e.Source], res.Positions[e.Target]
		if s.Y >= t2.Y {
			t.Errorf("%s (y=%v) not above %s (y=%v)", e.Source, s.Y, e.Target, t2.Y)
		}
	}
	if res.Positions["b"].Y != res.Positions["d"].Y {
		t.Errorf("siblings on different ranks: %v vs %v", res.Positions["b"], res.Positions["d"])
	}
}

func TestTreeDirections(t *testing.T) {
	nodes, edges := chainGraph("a", "b")
	tests := []struct {
		dir   Direction
		check func(a, b flow.Position) bool
	}{
		{Down, func(a, b flow.Position) bool { return a.Y < b.Y }},
		{Up, func(a, b flow.Position) bool { return a.Y > b.Y }},
		{Right, func(a, b flow.Position) bool { return a.X < b.X }},
		{Left, func(a, b flow.Position) bool { return a.X > b.X }},
	}
	for _, tt := range tests {
		opts := DefaultOptions()
		opts.Direction = tt.dir
		res, err := Layout(context.Background(), nodes, edges, Tree, opts)
		if err != nil {
			t.Fatal(err)
		}
		if !tt.check(res.Positions["a"], res.Positions["b"]) {
			t.Errorf("%s: a=%v b=%v", tt.dir, res.Positions["a"], res.Positions["b"])
		}
	}
}

func TestTreeDeterministic(t *testing.T) {
	nodes, edges := chainGraph("a", "b", "c", "d")
	edges = append(edges, flow.Edge{Source: "a", Target: "c"}, flow.Edge{Source: "b", Target: "d"})

	first, _ := Layout(context.Background(), nodes, edges, Tree, DefaultOptions())
	for i := 0; i < 5; i++ {
		again, _ := Layout(context.Background(), nodes, edges, Tree, DefaultOptions())
		for id, p := range first.Positions {
			if again.Positions[id] != p {
				t.Fatalf("run %d: %s at %v, want %v", i, id, again.Positions[id], p)
			}
		}
	}
}

func TestTreeCyclesParked(t *testing.T) {
	nodes := []flow.Node{{ID: "root"}, {ID: "x"}, {ID: "y"}}
	edges := []flow.Edge{
		{Source: "root", Target: "x"},
		{Source: "x", Target: "y"},
		{Source: "y", Target: "x"},
	}
	ranks := assignRanks(flow.NewIndex(nodes, edges))
	if ranks["root"] != 0 || ranks["x"] != 1 || ranks["y"] != 1 {
		t.Errorf("ranks = %v", ranks)
	}
}

func TestCountLayerCrossings(t *testing.T) {
	nodes := []flow.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	edges := []flow.Edge{{Source: "a", Target: "d"}, {Source: "b", Target: "c"}}
	idx := flow.NewIndex(nodes, edges)

	if got := countLayerCrossings(idx, []string{"a", "b"}, []string{"c", "d"}); got != 1 {
		t.Errorf("crossed = %d, want 1", got)
	}
	if got := countLayerCrossings(idx, []string{"a", "b"}, []string{"d", "c"}); got != 0 {
		t.Errorf("uncrossed = %d, want 0", got)
	}
}

func TestTreeReducesCrossings(t *testing.T) {
	nodes := []flow.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	edges := []flow.Edge{{Source: "a", Target: "d"}, {Source: "b", Target: "c"}}

	res, err := Layout(context.Background(), nodes, edges, Tree, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	p := res.Positions
	if (p["a"].X < p["b"].X) != (p["d"].X < p["c"].X) {
		t.Errorf("edges still cross: %v", p)
	}
}

func TestForceSatellites(t *testing.T) {
	nodes := []flow.Node{
		{ID: "1", Width: 100, Height: 40},
		{ID: "2", Position: flow.Position{X: 300}, Width: 100, Height: 40},
		{ID: "output-1", Width: 60, Height: 30},
		{ID: "output-2", Width: 60, Height: 30},
	}
	edges := []flow.Edge{{Source: "1", Target: "2"}}

	res, err := Layout(context.Background(), nodes, edges, Force, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	byID := byID(nodes)
	for _, id := range []string{"1", "2"} {
		parent := byID[id]
		parent.Position = res.Positions[id]
		sat := byID["output-"+id]
		sat.Position = res.Positions["output-"+id]

		if sat.Position.X <= parent.Position.X+parent.Width {
			t.Errorf("satellite of %s not to the right: parent %v, satellite %v", id, parent.Position, sat.Position)
		}
		if math.Abs(sat.Center().Y-parent.Center().Y) > 1e-9 {
			t.Errorf("satellite of %s not aligned: %v vs %v", id, sat.Center().Y, parent.Center().Y)
		}
	}
}

func TestForceIterationCap(t *testing.T) {
	nodes, edges := chainGraph("a", "b", "c")
	opts := DefaultOptions()
	opts.Iterations = 5
	opts.Epsilon = 0

	res, err := Layout(context.Background(), nodes, edges, Force, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Iterations != 5 || res.Converged {
		t.Errorf("iterations = %d, converged = %v; want cap of 5", res.Iterations, res.Converged)
	}
}

func TestForceConverges(t *testing.T) {
	nodes, edges := chainGraph("a", "b")
	opts := DefaultOptions()
	opts.Epsilon = 1e3

	res, err := Layout(context.Background(), nodes, edges, Force, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged || res.Iterations != 1 {
		t.Errorf("converged = %v after %d ticks", res.Converged, res.Iterations)
	}
}

func TestForceLockedNodesStay(t *testing.T) {
	nodes := []flow.Node{
		{ID: "a", Position: flow.Position{X: 10, Y: 20}, Locked: true},
		{ID: "b", Position: flow.Position{X: 15, Y: 20}},
	}
	res, err := Layout(context.Background(), nodes, nil, Force, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Positions["a"] != nodes[0].Position {
		t.Errorf("locked node moved to %v", res.Positions["a"])
	}
	if res.Positions["b"] == nodes[1].Position {
		t.Error("free overlapping node did not move")
	}
}

func TestLayoutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	nodes, edges := chainGraph("a", "b")

	_, err := Layout(ctx, nodes, edges, Force, DefaultOptions())
	if !ferrors.Is(err, ferrors.ErrCodeLayoutFailure) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want layout failure wrapping context.Canceled", err)
	}
}

func TestLayoutUnknownStrategy(t *testing.T) {
	_, err := Layout(context.Background(), nil, nil, "spiral", Options{})
	if !ferrors.Is(err, ferrors.ErrCodeInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestResultApply(t *testing.T) {
	nodes := []flow.Node{{ID: "a"}, {ID: "b", Position: flow.Position{X: 1, Y: 1}}}
	res := Result{Positions: map[string]flow.Position{"a": {X: 5, Y: 6}}}

	out := res.Apply(nodes)
	if out[0].Position != (flow.Position{X: 5, Y: 6}) || out[1].Position != nodes[1].Position {
		t.Errorf("Apply = %v", out)
	}
	if nodes[0].Position != (flow.Position{}) {
		t.Error("Apply mutated input")
	}
}

func TestParsePlain(t *testing.T) {
	out := []byte("graph 1 4 2\nnode n0 1 1.5 2.0833 0.5556 \"\" solid box black lightgrey\nnode n1 3 0.5 1 1 \"\" solid box black lightgrey\nedge n0 n1 4 1 1 1 1 1 1 1 1 solid black\nstop\n")
	got, err := parsePlain(out)
	if err != nil {
		t.Fatal(err)
	}
	if got["n0"] != (flow.Position{X: 72, Y: 36}) || got["n1"] != (flow.Position{X: 216, Y: 108}) {
		t.Errorf("parsePlain = %v", got)
	}
}

func TestLayeredDOT(t *testing.T) {
	nodes := []flow.Node{{ID: "weird id\""}, {ID: "b"}}
	edges := []flow.Edge{{Source: "weird id\"", Target: "b"}, {Source: "b", Target: "missing"}}

	dot, names := layeredDOT(nodes, edges, DefaultOptions())
	if names["n0"] != "weird id\"" || names["n1"] != "b" {
		t.Errorf("names = %v", names)
	}
	for _, want := range []string{"rankdir=TB;", "ordering=out;", "n0 -> n1;", "nodesep=1.0417;"} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "missing") {
		t.Errorf("dangling edge emitted:\n%s", dot)
	}
}
