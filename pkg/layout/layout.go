package layout

import (
	"context"
	"fmt"
	"time"

	"github.com/flowco/flowsync/pkg/cache"
	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/observability"
)

// Result holds computed top-left positions by node id.
type Result struct {
	Positions map[string]flow.Position `json:"positions"`
	// Iterations and Converged are set by the force strategy.
	Iterations int  `json:"iterations,omitempty"`
	Converged  bool `json:"converged,omitempty"`
}

// Apply returns a copy of nodes with the computed positions. Nodes without a
// computed position keep their current one.
func (r Result) Apply(nodes []flow.Node) []flow.Node {
	out := flow.CloneNodes(nodes)
	for i := range out {
		if p, ok := r.Positions[out[i].ID]; ok {
			out[i].Position = p
		}
	}
	return out
}

// Func is the signature shared by all strategies.
type Func func(ctx context.Context, nodes []flow.Node, edges []flow.Edge, opts Options) (Result, error)

var strategies = map[Strategy]Func{
	Layered: layered,
	Tree:    tree,
	Force:   force,
}

// Layout computes positions with the given strategy. Failures, panics and
// cancellation are reported as [errors.ErrCodeLayoutFailure]; cancellation
// additionally wraps ctx.Err().
func Layout(ctx context.Context, nodes []flow.Node, edges []flow.Edge, strategy Strategy, opts Options) (res Result, err error) {
	fn, ok := strategies[strategy]
	if !ok {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "unknown layout strategy %q", strategy)
	}
	opts = opts.withDefaults()

	start := time.Now()
	observability.Layout().OnLayoutStart(ctx, string(strategy), len(nodes))
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			err = errors.Wrap(errors.ErrCodeLayoutFailure, err, "%s layout", strategy)
			res = Result{}
		}
		observability.Layout().OnLayoutComplete(ctx, string(strategy), time.Since(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(nodes) == 0 {
		return Result{Positions: map[string]flow.Position{}}, nil
	}
	return fn(ctx, nodes, edges, opts)
}

// graphFingerprint is the part of a graph that influences layout output.
type graphFingerprint struct {
	Nodes []nodeFingerprint `json:"n"`
	Edges [][2]string       `json:"e"`
}

type nodeFingerprint struct {
	ID     string        `json:"i"`
	W      float64       `json:"w"`
	H      float64       `json:"h"`
	Pos    flow.Position `json:"p"`
	Locked bool          `json:"l,omitempty"`
}

// GraphHash hashes topology and dimensions. Current positions and lock state
// are included when seeded is set, for strategies that start from them.
func GraphHash(nodes []flow.Node, edges []flow.Edge, seeded bool) string {
	fp := graphFingerprint{
		Nodes: make([]nodeFingerprint, len(nodes)),
		Edges: make([][2]string, len(edges)),
	}
	for i, n := range nodes {
		d := n.Dimensions()
		fp.Nodes[i] = nodeFingerprint{ID: n.ID, W: d.Width, H: d.Height}
		if seeded {
			fp.Nodes[i].Pos, fp.Nodes[i].Locked = n.Position, n.IsLocked()
		}
	}
	for i, e := range edges {
		fp.Edges[i] = [2]string{e.Source, e.Target}
	}
	h, _ := cache.HashJSON(fp)
	return h
}

// byID indexes nodes, dropping duplicates after the first.
func byID(nodes []flow.Node) map[string]flow.Node {
	m := make(map[string]flow.Node, len(nodes))
	for _, n := range nodes {
		if _, dup := m[n.ID]; !dup {
			m[n.ID] = n
		}
	}
	return m
}
