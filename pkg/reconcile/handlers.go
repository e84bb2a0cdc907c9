package reconcile

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/rewire"
	"github.com/flowco/flowsync/pkg/validate"
)

// DragStop commits a node's final drag position. Locked nodes are not
// refused: the renderer has already moved the node, and refusing would leave
// host and renderer disagreeing until the next push.
func (r *Reconciler) DragStop(ctx context.Context, id string, pos flow.Position) error {
	_, err := r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		_, i, ok := flow.NodeByID(nodes, id)
		if !ok {
			return nil, nil, missing("node", id)
		}
		nodes[i].Position = pos
		return nodes, edges, nil
	})
	if err != nil {
		return err
	}
	_, err = r.Publish(ctx, nil, nil)
	return err
}

// Resize commits new dimensions. Intermediate updates (resizing=true) are
// committed silently; the final one is emitted with the node selected.
func (r *Reconciler) Resize(ctx context.Context, id string, dims flow.Dimensions, resizing bool) error {
	_, err := r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		_, i, ok := flow.NodeByID(nodes, id)
		if !ok {
			return nil, nil, missing("node", id)
		}
		nodes[i].Width, nodes[i].Height = dims.Width, dims.Height
		return nodes, edges, nil
	})
	if err != nil || resizing {
		return err
	}
	_, err = r.Publish(ctx, flow.Ref(id), nil)
	return err
}

// Connect validates and adds the edge source->target. The emission selects
// the new edge.
func (r *Reconciler) Connect(ctx context.Context, source, target string) (flow.Edge, error) {
	args := r.Args()
	if !args.AllowNewEdges {
		return flow.Edge{}, errors.New(errors.ErrCodeDisabled, "new edges are not allowed")
	}
	edge := flow.Edge{
		ID:       flow.EdgeID(source, target),
		Source:   source,
		Target:   target,
		Animated: args.AnimateNewEdges,
	}
	_, err := r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		if err := validate.Check(validate.Connection{Source: source, Target: target}, nodes, edges); err != nil {
			return nil, nil, err
		}
		return nodes, append(edges, edge), nil
	})
	if err != nil {
		r.logger.Debug("connection rejected", "source", source, "target", target, "err", err)
		return flow.Edge{}, err
	}
	_, err = r.Publish(ctx, flow.Ref(edge.ID), nil)
	return edge, err
}

// DeleteNodes removes the deletable nodes among ids and bridges their
// incomers to their outgoers. It returns the removed nodes.
func (r *Reconciler) DeleteNodes(ctx context.Context, ids []string) ([]flow.Node, error) {
	var removed []flow.Node
	_, err := r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		kept, rewired, gone := rewire.DeleteNodes(ids, nodes, edges)
		if len(gone) == 0 {
			return nil, nil, errors.New(errors.ErrCodeMissingReference, "no deletable node among %v", ids)
		}
		removed = gone
		return kept, rewired, nil
	})
	if err != nil {
		return nil, err
	}
	_, err = r.Publish(ctx, nil, nil)
	return removed, err
}

// DeleteEdges removes the edges with the given ids.
func (r *Reconciler) DeleteEdges(ctx context.Context, ids []string) error {
	drop := toSet(ids)
	_, err := r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		out := edges[:0]
		for _, e := range edges {
			if !drop[e.ID] {
				out = append(out, e)
			}
		}
		if len(out) == len(edges) {
			return nil, nil, errors.New(errors.ErrCodeMissingReference, "no edge among %v", ids)
		}
		return nodes, out, nil
	})
	if err != nil {
		return err
	}
	_, err = r.Publish(ctx, nil, nil)
	return err
}

// SelectEdges marks exactly the given edges as selected.
func (r *Reconciler) SelectEdges(ctx context.Context, ids []string) error {
	sel := toSet(ids)
	_, err := r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		for i := range edges {
			edges[i].Selected = sel[edges[i].ID]
		}
		return nodes, edges, nil
	})
	if err != nil {
		return err
	}
	_, err = r.Publish(ctx, nil, nil)
	return err
}

// ClickNode handles a node click. With shift held, a satellite click asks the
// host to inspect the satellite's origin and any other node returns its HTML
// popup content. A plain click emits the selection when getNodeOnClick is set.
func (r *Reconciler) ClickNode(ctx context.Context, id string, shift bool) (popup string, err error) {
	if r.Args().Disabled {
		return "", errors.New(errors.ErrCodeDisabled, "editing is disabled")
	}
	node, ok := r.store.Node(id)
	if !ok {
		return "", missing("node", id)
	}

	if !shift {
		if r.Args().GetNodeOnClick {
			_, err = r.Publish(ctx, flow.Ref(id), nil)
		}
		return "", err
	}

	origin, isSatellite := flow.SatelliteParent(id, r.satellitePrefix())
	if !isSatellite {
		return node.DataString(flow.DataHTML), nil
	}
	_, err = r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		_, i, ok := flow.NodeByID(nodes, origin)
		if !ok {
			return nil, nil, missing("node", origin)
		}
		if nodes[i].Data == nil {
			nodes[i].Data = make(map[string]any, 1)
		}
		nodes[i].Data[flow.DataCommand] = flow.CommandInspect
		return nodes, edges, nil
	})
	if err != nil {
		return "", err
	}
	_, err = r.Publish(ctx, flow.Ref(origin), flow.NewCommand(flow.CommandInspect, origin))
	return "", err
}

// ClickEdge emits the edge selection when getEdgeOnClick is set.
func (r *Reconciler) ClickEdge(ctx context.Context, id string) error {
	args := r.Args()
	if args.Disabled {
		return errors.New(errors.ErrCodeDisabled, "editing is disabled")
	}
	if _, _, ok := flow.EdgeByID(r.store.Current().Edges, id); !ok {
		return missing("edge", id)
	}
	if !args.GetEdgeOnClick {
		return nil
	}
	_, err := r.Publish(ctx, flow.Ref(id), nil)
	return err
}

// ClickPane clears the selection.
func (r *Reconciler) ClickPane(ctx context.Context) error {
	if r.Args().Disabled {
		return errors.New(errors.ErrCodeDisabled, "editing is disabled")
	}
	_, err := r.Publish(ctx, nil, nil)
	return err
}

// EditNode applies a quick edit to a node's pill and content.
func (r *Reconciler) EditNode(ctx context.Context, id, pill, content string) error {
	_, err := r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		_, i, ok := flow.NodeByID(nodes, id)
		if !ok {
			return nil, nil, missing("node", id)
		}
		if !nodes[i].Deletable {
			return nil, nil, errors.New(errors.ErrCodeDisabled, "node %q is read-only", id)
		}
		if nodes[i].Data == nil {
			nodes[i].Data = make(map[string]any, 2)
		}
		nodes[i].Data[flow.DataPill] = NormalizePill(pill)
		nodes[i].Data[flow.DataContent] = content
		return nodes, edges, nil
	})
	if err != nil {
		return err
	}
	_, err = r.Publish(ctx, nil, nil)
	return err
}

// ChangeKind sets a node's kind. Only unconnected nodes may change kind.
func (r *Reconciler) ChangeKind(ctx context.Context, id string, kind flow.Kind) error {
	if !kind.Valid() {
		return errors.New(errors.ErrCodeInvalidInput, "unknown node kind %q", kind)
	}
	_, err := r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		_, i, ok := flow.NodeByID(nodes, id)
		if !ok {
			return nil, nil, missing("node", id)
		}
		if len(flow.ConnectedEdges([]string{id}, edges)) > 0 {
			return nil, nil, errors.New(errors.ErrCodeStructuralRejection, "node %q has connected edges", id)
		}
		nodes[i].Kind = kind
		return nodes, edges, nil
	})
	if err != nil {
		return err
	}
	_, err = r.Publish(ctx, nil, nil)
	return err
}

// NodeCommand forwards a node-menu command to the host. The graph is not
// changed; the host decides what edit, lock, show or run mean.
func (r *Reconciler) NodeCommand(ctx context.Context, id, name string) error {
	if r.Args().Disabled {
		return errors.New(errors.ErrCodeDisabled, "editing is disabled")
	}
	node, ok := r.store.Node(id)
	if !ok {
		return missing("node", id)
	}
	if !node.Deletable {
		return errors.New(errors.ErrCodeDisabled, "node %q is read-only", id)
	}
	switch name {
	case flow.CommandEdit, flow.CommandLock, flow.CommandUnlock,
		flow.CommandShow, flow.CommandHide, flow.CommandRun, flow.CommandInspect:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown node command %q", name)
	}
	_, err := r.Publish(ctx, nil, flow.NewCommand(name, id))
	return err
}

// AddNode creates a deletable node of the given kind at pos and returns it.
func (r *Reconciler) AddNode(ctx context.Context, kind flow.Kind, pos flow.Position, data map[string]any) (flow.Node, error) {
	if !kind.Valid() {
		return flow.Node{}, errors.New(errors.ErrCodeInvalidInput, "unknown node kind %q", kind)
	}
	node := flow.Node{
		ID:        uuid.NewString(),
		Kind:      kind,
		Position:  pos,
		Data:      data,
		Deletable: true,
	}
	if node.Data == nil {
		node.Data = map[string]any{flow.DataContent: ""}
	}
	_, err := r.mutate(ctx, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error) {
		return append(nodes, node), edges, nil
	})
	if err != nil {
		return flow.Node{}, err
	}
	_, err = r.Publish(ctx, nil, nil)
	return node, err
}

// NormalizePill turns free text into a pill label: every non-alphanumeric
// character becomes '-' and each dash-separated word is capitalized.
//
//	"hello world" -> "Hello-World"
func NormalizePill(s string) string {
	words := strings.Split(strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '-'
	}, s), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, "-")
}

func (r *Reconciler) satellitePrefix() string {
	if lo := r.Args().LayoutOptions; lo != nil && lo.SatellitePrefix != "" {
		return lo.SatellitePrefix
	}
	return flow.SatellitePrefix
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
