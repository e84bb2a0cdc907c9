// Package session wires one editor instance.
//
// A [Session] owns the graph store of a single host connection together with
// the reconciler, the layout orchestrator, the context-menu controller and the
// HTML popup. Every inbound event is handled under one mutex, which gives the
// single-threaded semantics the reconciler assumes. Layouts run in the
// background and reach the store through a compare-and-swap commit.
//
// A [Registry] creates and tracks sessions by id.
//
// # Usage
//
//	reg := session.NewRegistry(session.Options{Logger: logger, Journal: j})
//	sess, err := reg.Open(ctx, "new")
//	if err != nil {
//	    return err
//	}
//	detach := sess.Attach(conn, func() { conn.FitView() })
//	defer detach()
//	sess.HandleSnapshot(ctx, snap)
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/flowco/flowsync/pkg/cache"
	"github.com/flowco/flowsync/pkg/emit"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/journal"
	"github.com/flowco/flowsync/pkg/layout"
	"github.com/flowco/flowsync/pkg/menu"
	"github.com/flowco/flowsync/pkg/reconcile"
	"github.com/flowco/flowsync/pkg/render"
	"github.com/flowco/flowsync/pkg/store"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// SketchImageKey is the payload key of the captured image in a sketch command.
const SketchImageKey = "image"

// Options configures new sessions.
type Options struct {
	Logger *log.Logger
	// Clock stamps envelopes. Nil uses a wall clock per session.
	Clock func() emit.Clock

	// Cache holds computed layouts and, with PersistSnapshots, the last
	// envelope of each session.
	Cache            cache.Cache
	Keyer            cache.Keyer
	PersistSnapshots bool

	// Journal receives every envelope. Nil disables journaling.
	Journal journal.Journal

	// Capturer renders the view for the sketch command. Nil draws the
	// committed graph with graphviz.
	Capturer emit.Capturer

	MenuMargin float64

	// Layout is used when the host sends no layout options.
	Layout *flow.LayoutSettings
}

// output is an attached consumer of session events.
type output struct {
	sink  emit.Sink
	onFit func()
}

// Session is one editor instance.
type Session struct {
	id       string
	logger   *log.Logger
	capturer emit.Capturer
	defaults *flow.LayoutSettings

	store   *store.Store
	emitter *emit.Emitter
	rec     *reconcile.Reconciler
	orch    *layout.Orchestrator
	menu    *menu.Controller

	cache cache.Cache
	keyer cache.Keyer

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	popup  string
	fitted bool
	closed bool

	// layoutStamp is the timestamp of the last host snapshot that asked
	// for a layout; lastRun is the run it started.
	layoutStamp int64
	lastRun     *layout.Run

	outMu   sync.RWMutex
	outs    map[int]output
	nextOut int
}

// New creates a session with an empty graph.
func New(id string, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("session", id)

	var clock emit.Clock
	if opts.Clock != nil {
		clock = opts.Clock()
	}
	keyer := opts.Keyer
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	c := opts.Cache
	if c == nil {
		c = cache.NewNullCache()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		logger:   logger,
		capturer: opts.Capturer,
		defaults: opts.Layout,
		store:    store.New(nil, nil),
		menu:     menu.NewController(opts.MenuMargin),
		cache:    c,
		keyer:    keyer,
		ctx:      ctx,
		cancel:   cancel,
		outs:     make(map[int]output),
	}

	s.emitter = emit.New(clock, logger, emit.SinkFunc(s.broadcast)).WithSession(id)
	if opts.Journal != nil {
		s.emitter.AddSink(journal.Sink(opts.Journal))
	}
	if opts.PersistSnapshots {
		s.emitter.AddSink(emit.SinkFunc(s.persist))
	}
	s.rec = reconcile.New(s.store, s.emitter, logger)
	s.orch = layout.NewOrchestrator(s.store, s.rec,
		layout.WithCache(c, keyer),
		layout.WithLogger(logger),
		layout.WithFitHandler(s.layoutFitted),
	)
	if s.capturer == nil {
		s.capturer = render.Capturer{Graph: s.graph, Scale: 1}
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Store returns the graph store.
func (s *Session) Store() *store.Store { return s.store }

// Reconciler returns the session's reconciler.
func (s *Session) Reconciler() *reconcile.Reconciler { return s.rec }

// Overlay returns the open context menu.
func (s *Session) Overlay() menu.Overlay { return s.menu.Current() }

// Popup returns the HTML of the open popup, or "".
func (s *Session) Popup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popup
}

// Attach registers a consumer of envelopes and fit-view requests. The
// returned function detaches it.
func (s *Session) Attach(sink emit.Sink, onFit func()) (detach func()) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	id := s.nextOut
	s.nextOut++
	s.outs[id] = output{sink: sink, onFit: onFit}
	return func() {
		s.outMu.Lock()
		defer s.outMu.Unlock()
		delete(s.outs, id)
	}
}

func (s *Session) broadcast(ctx context.Context, env flow.Envelope) error {
	s.outMu.RLock()
	defer s.outMu.RUnlock()
	var errs []error
	for _, o := range s.outs {
		if o.sink == nil {
			continue
		}
		if err := o.sink.Send(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) fitView() {
	s.outMu.RLock()
	defer s.outMu.RUnlock()
	for _, o := range s.outs {
		if o.onFit != nil {
			o.onFit()
		}
	}
}

// layoutFitted runs after a committed layout.
func (s *Session) layoutFitted() {
	if s.rec.Args().FitView {
		s.fitView()
	}
}

func (s *Session) graph() ([]flow.Node, []flow.Edge) {
	view := s.store.Current()
	return view.Nodes, view.Edges
}

// lock acquires the event mutex unless the session is closed.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// HandleSnapshot offers a host snapshot to the reconciler. The first
// committed snapshot requests a fit when the host asks for one. A snapshot
// carrying the layout command starts a background layout with its layout
// options; hosts re-send the same snapshot on every rerun, so each
// timestamp triggers at most one layout.
func (s *Session) HandleSnapshot(ctx context.Context, snap flow.Snapshot) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	committed := s.rec.Apply(ctx, snap)
	if committed && snap.FitView && !s.fitted {
		s.fitted = true
		s.fitView()
	}
	if snap.Command != nil && snap.Command.Name == flow.CommandLayout && snap.Timestamp > s.layoutStamp {
		s.layoutStamp = snap.Timestamp
		if _, err := s.startLayout(snap.LayoutOptions); err != nil {
			return committed, err
		}
	}
	return committed, nil
}

// LastLayout returns the most recent layout run started on this session,
// or nil when none has been.
func (s *Session) LastLayout() *layout.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// SetViewport records the renderer camera for subsequent envelopes.
func (s *Session) SetViewport(vp flow.Viewport) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.emitter.SetViewport(&vp)
	return nil
}

// DragStop commits a node's final position.
func (s *Session) DragStop(ctx context.Context, id string, pos flow.Position) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.rec.DragStop(ctx, id, pos)
}

// Resize commits node dimensions.
func (s *Session) Resize(ctx context.Context, id string, dims flow.Dimensions, resizing bool) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.rec.Resize(ctx, id, dims, resizing)
}

// Connect adds a validated edge.
func (s *Session) Connect(ctx context.Context, source, target string) (flow.Edge, error) {
	if err := s.lock(); err != nil {
		return flow.Edge{}, err
	}
	defer s.mu.Unlock()
	return s.rec.Connect(ctx, source, target)
}

// DeleteNodes removes nodes, bridging their neighbours, and closes the menu.
func (s *Session) DeleteNodes(ctx context.Context, ids []string) ([]flow.Node, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	s.menu.Close()
	return s.rec.DeleteNodes(ctx, ids)
}

// DeleteEdges removes edges and closes the menu.
func (s *Session) DeleteEdges(ctx context.Context, ids []string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.menu.Close()
	return s.rec.DeleteEdges(ctx, ids)
}

// SelectEdges marks the given edges as selected.
func (s *Session) SelectEdges(ctx context.Context, ids []string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.rec.SelectEdges(ctx, ids)
}

// ClickNode handles a node click and returns the popup HTML it opened, if any.
func (s *Session) ClickNode(ctx context.Context, id string, shift bool) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()
	s.menu.Close()
	popup, err := s.rec.ClickNode(ctx, id, shift)
	if err != nil {
		return "", err
	}
	if popup != "" {
		s.popup = popup
	}
	return popup, nil
}

// ClosePopup dismisses the HTML popup.
func (s *Session) ClosePopup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popup = ""
}

// ClickEdge handles an edge click.
func (s *Session) ClickEdge(ctx context.Context, id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.menu.Close()
	return s.rec.ClickEdge(ctx, id)
}

// ClickPane clears the selection and dismisses the menu and popup.
func (s *Session) ClickPane(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.menu.Close()
	s.popup = ""
	return s.rec.ClickPane(ctx)
}

// EditNode applies a quick edit.
func (s *Session) EditNode(ctx context.Context, id, pill, content string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.menu.Close()
	return s.rec.EditNode(ctx, id, pill, content)
}

// ChangeKind sets the kind of an unconnected node.
func (s *Session) ChangeKind(ctx context.Context, id string, kind flow.Kind) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.menu.Close()
	return s.rec.ChangeKind(ctx, id, kind)
}

// NodeCommand forwards a node-menu command to the host.
func (s *Session) NodeCommand(ctx context.Context, id, name string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.menu.Close()
	return s.rec.NodeCommand(ctx, id, name)
}

// AddNode creates a node. A nil pos places it where the pane menu was opened.
func (s *Session) AddNode(ctx context.Context, kind flow.Kind, pos *flow.Position, data map[string]any) (flow.Node, error) {
	if err := s.lock(); err != nil {
		return flow.Node{}, err
	}
	defer s.mu.Unlock()
	at := flow.Position{}
	if pos != nil {
		at = *pos
	} else if o := s.menu.Current(); o.Kind == menu.Pane {
		at = o.FlowPos
	}
	s.menu.Close()
	return s.rec.AddNode(ctx, kind, at, data)
}

// Sketch captures the view and sends it to the host as a sketch command.
func (s *Session) Sketch(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	url, err := emit.CaptureDataURL(ctx, s.capturer)
	if err != nil {
		return err
	}
	_, err = s.rec.Publish(ctx, nil, flow.NewCommand(flow.CommandSketch, "").With(SketchImageKey, url))
	return err
}

// Layout starts a background layout. Settings resolve from the argument,
// then the host's layout options, then the session defaults.
func (s *Session) Layout(settings *flow.LayoutSettings) (*layout.Run, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.startLayout(settings)
}

func (s *Session) startLayout(settings *flow.LayoutSettings) (*layout.Run, error) {
	s.menu.Close()

	if settings == nil {
		settings = s.rec.Args().LayoutOptions
	}
	if settings == nil {
		settings = s.defaults
	}
	strategy, opts, err := layout.FromSettings(settings)
	if err != nil {
		return nil, err
	}
	s.lastRun = s.orch.Start(s.ctx, strategy, opts)
	return s.lastRun, nil
}

// Close cancels background work and waits for it. Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.orch.Close()
}

// persist stores env as the session's resumable snapshot.
func (s *Session) persist(ctx context.Context, env flow.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.cache.Set(ctx, s.keyer.SnapshotKey(s.id), data, cache.TTLSnapshot)
}

// Restore loads the persisted graph of this session id, if any, without
// emitting. It reports whether a graph was found.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	data, hit, err := s.cache.Get(ctx, s.keyer.SnapshotKey(s.id))
	if err != nil || !hit {
		return false, err
	}
	var env flow.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	s.store.Replace(env.Nodes, env.Edges)
	if env.Viewport != nil {
		s.emitter.SetViewport(env.Viewport)
	}
	s.logger.Debug("restored session", "nodes", len(env.Nodes), "edges", len(env.Edges))
	return true, nil
}
