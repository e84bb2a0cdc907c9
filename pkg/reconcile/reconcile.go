// Package reconcile arbitrates between host snapshots and local edits.
//
// The host periodically pushes a complete graph; the user edits the same graph
// locally. A [Reconciler] decides which source wins at each instant using a
// single counter, lastApplied:
//
//   - A host snapshot is committed only when lastApplied <= snapshot.Timestamp
//     and its content differs from the committed graph. After a commit the
//     snapshot is echoed back to the host.
//   - Every emission, echo or local edit, advances lastApplied to the
//     envelope's timestamp. A snapshot the host built before the last local
//     edit therefore cannot overwrite it.
//
// Local interaction handlers live on the same type (see handlers.go). Each one
// commits to the store and then publishes an envelope.
package reconcile

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/flowco/flowsync/pkg/emit"
	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/observability"
	"github.com/flowco/flowsync/pkg/store"
)

// Commit sources reported to observability hooks.
const (
	SourceHost   = "host"
	SourceLocal  = "local"
	SourceLayout = "layout"
)

// maxCommitRetries bounds the compare-and-swap loop of local edits racing a
// layout commit.
const maxCommitRetries = 8

// Reconciler owns lastApplied and the host arguments of a session.
// It is safe for concurrent use.
type Reconciler struct {
	store   *store.Store
	emitter *emit.Emitter
	logger  *log.Logger

	mu          sync.Mutex
	lastApplied int64
	args        flow.HostArgs
}

// New creates a reconciler over st that publishes through em.
func New(st *store.Store, em *emit.Emitter, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{store: st, emitter: em, logger: logger}
}

// Store returns the graph store.
func (r *Reconciler) Store() *store.Store { return r.store }

// LastApplied returns the timestamp of the most recent emission.
func (r *Reconciler) LastApplied() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastApplied
}

// Args returns the host arguments from the latest snapshot.
func (r *Reconciler) Args() flow.HostArgs {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.args
}

// SetArgs replaces the host arguments without touching the graph.
func (r *Reconciler) SetArgs(args flow.HostArgs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.args = args
	if args.Viewport != nil {
		r.emitter.SetViewport(args.Viewport)
	}
}

// Apply offers a host snapshot. It reports whether the snapshot was committed.
// Host arguments are taken from every snapshot, stale or not; the graph only
// from snapshots that pass the timestamp and change tests.
func (r *Reconciler) Apply(ctx context.Context, snap flow.Snapshot) bool {
	r.SetArgs(snap.HostArgs)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastApplied > snap.Timestamp {
		r.logger.Debug("dropping stale snapshot", "timestamp", snap.Timestamp, "lastApplied", r.lastApplied)
		observability.Reconcile().OnStale(ctx, "stale", snap.Timestamp)
		return false
	}
	if !r.store.Changed(snap.Nodes, snap.Edges) {
		observability.Reconcile().OnStale(ctx, "unchanged", snap.Timestamp)
		return false
	}

	r.store.Replace(snap.Nodes, snap.Edges)
	observability.Reconcile().OnCommit(ctx, SourceHost, len(snap.Nodes), len(snap.Edges))
	r.logger.Debug("committed host snapshot", "timestamp", snap.Timestamp, "nodes", len(snap.Nodes), "edges", len(snap.Edges))

	view := r.store.Current()
	r.publishLocked(ctx, view, flow.SelectedNodeID(view.Nodes), nil)
	return true
}

// Publish emits the committed graph with the given selection and command.
func (r *Reconciler) Publish(ctx context.Context, selectedID *string, cmd *flow.Command) (flow.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publishLocked(ctx, r.store.Current(), selectedID, cmd)
}

func (r *Reconciler) publishLocked(ctx context.Context, view store.View, selectedID *string, cmd *flow.Command) (flow.Envelope, error) {
	env, err := r.emitter.Emit(ctx, view.Nodes, view.Edges, selectedID, cmd)
	if env.Timestamp > r.lastApplied {
		r.lastApplied = env.Timestamp
	}
	return env, err
}

// mutate applies fn to the committed graph and commits the result. The
// commit is a compare-and-swap against the version fn saw, retried when a
// concurrent layout commit wins the race.
func (r *Reconciler) mutate(ctx context.Context, fn func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, error)) (store.View, error) {
	if r.Args().Disabled {
		return store.View{}, errors.New(errors.ErrCodeDisabled, "editing is disabled")
	}
	for range maxCommitRetries {
		view := r.store.Current()
		nodes, edges, err := fn(view.Nodes, view.Edges)
		if err != nil {
			return store.View{}, err
		}
		if ok, version := r.store.ReplaceIf(view.Version, nodes, edges); ok {
			observability.Reconcile().OnCommit(ctx, SourceLocal, len(nodes), len(edges))
			return store.View{Nodes: nodes, Edges: edges, Version: version}, nil
		}
	}
	return store.View{}, errors.New(errors.ErrCodeInternal, "commit lost %d races", maxCommitRetries)
}

func missing(kind, id string) error {
	return errors.New(errors.ErrCodeMissingReference, "unknown %s %q", kind, id)
}
