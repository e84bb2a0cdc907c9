package layout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/flowco/flowsync/pkg/cache"
	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/observability"
	"github.com/flowco/flowsync/pkg/store"
)

// Publisher emits the committed graph after a layout.
type Publisher interface {
	Publish(ctx context.Context, selectedID *string, cmd *flow.Command) (flow.Envelope, error)
}

// ErrStale is returned by a run whose input was superseded by a newer commit
// before the layout finished.
var ErrStale = errors.New(errors.ErrCodeStaleSnapshot, "layout input superseded by a newer commit")

// Orchestrator runs layouts for one editor session in the background.
type Orchestrator struct {
	store  *store.Store
	pub    Publisher
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger
	onFit  func()

	// compute is Layout; tests substitute a controllable strategy.
	compute computeFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	runs   sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache enables layout caching.
func WithCache(c cache.Cache, k cache.Keyer) Option {
	return func(o *Orchestrator) {
		o.cache = c
		if k != nil {
			o.keyer = k
		}
	}
}

// WithFitHandler registers the fit-camera signal, raised once per committed run.
func WithFitHandler(fn func()) Option {
	return func(o *Orchestrator) { o.onFit = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an orchestrator committing to st and publishing via pub.
func NewOrchestrator(st *store.Store, pub Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   st,
		pub:     pub,
		cache:   cache.NewNullCache(),
		keyer:   cache.NewDefaultKeyer(),
		logger:  log.Default(),
		compute: Layout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run is a handle on a background layout.
type Run struct {
	done      chan struct{}
	result    Result
	err       error
	committed bool
	cached    bool
}

// Wait blocks until the run finishes and returns its result.
func (r *Run) Wait() (Result, error) {
	<-r.done
	return r.result, r.err
}

// Done is closed when the run finishes.
func (r *Run) Done() <-chan struct{} { return r.done }

// Committed reports whether the run's positions reached the store.
// Only meaningful after Wait.
func (r *Run) Committed() bool { return r.committed }

// Cached reports whether the result came from the layout cache.
func (r *Run) Cached() bool { return r.cached }

// Start cancels any in-flight run and lays out the latest committed graph.
func (o *Orchestrator) Start(ctx context.Context, strategy Strategy, opts Options) *Run {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	view := o.store.Current()
	o.runs.Add(1)
	o.mu.Unlock()

	run := &Run{done: make(chan struct{})}
	go func() {
		defer o.runs.Done()
		defer close(run.done)
		defer cancel()
		o.execute(runCtx, run, view, strategy, opts.withDefaults())
	}()
	return run
}

// Cancel stops the in-flight run, if any.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// Close cancels the in-flight run and waits for every run to exit.
func (o *Orchestrator) Close() {
	o.Cancel()
	o.runs.Wait()
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, view store.View, strategy Strategy, opts Options) {
	logger := o.logger.With("strategy", strategy, "version", view.Version)

	res, cached, err := o.computeCached(ctx, view, strategy, opts)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		run.err = err
		if ctx.Err() != nil {
			logger.Debug("layout cancelled")
		} else {
			logger.Error("layout failed", "err", err)
		}
		return
	}
	run.result, run.cached = res, cached

	if !o.commit(ctx, view, res) {
		run.err = ErrStale
		logger.Debug("discarding stale layout")
		return
	}
	run.committed = true

	if o.onFit != nil {
		o.onFit()
	}
	if _, err := o.pub.Publish(context.WithoutCancel(ctx), nil, nil); err != nil {
		logger.Warn("publish layout", "err", err)
	}
	logger.Debug("layout committed", "nodes", len(res.Positions), "cached", cached)
}

// commit writes positions only if nothing was committed since view was taken.
func (o *Orchestrator) commit(ctx context.Context, view store.View, res Result) bool {
	nodes := res.Apply(view.Nodes)
	ok, _ := o.store.ReplaceIf(view.Version, nodes, view.Edges)
	if ok {
		observability.Reconcile().OnCommit(ctx, "layout", len(nodes), len(view.Edges))
	}
	return ok
}

func (o *Orchestrator) computeCached(ctx context.Context, view store.View, strategy Strategy, opts Options) (Result, bool, error) {
	return cached(ctx, o.cache, o.keyer, o.logger, o.compute, view.Nodes, view.Edges, strategy, opts)
}

// Cached computes a layout through c. A hit skips the computation; a miss
// computes with [Layout] and stores the result for [cache.TTLLayout].
// Cache failures are logged and never fail the layout.
func Cached(ctx context.Context, c cache.Cache, k cache.Keyer, logger *log.Logger, nodes []flow.Node, edges []flow.Edge, strategy Strategy, opts Options) (Result, bool, error) {
	if c == nil {
		c = cache.NewNullCache()
	}
	if k == nil {
		k = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return cached(ctx, c, k, logger, Layout, nodes, edges, strategy, opts)
}

type computeFunc func(ctx context.Context, nodes []flow.Node, edges []flow.Edge, s Strategy, o Options) (Result, error)

func cached(ctx context.Context, c cache.Cache, k cache.Keyer, logger *log.Logger, compute computeFunc, nodes []flow.Node, edges []flow.Edge, strategy Strategy, opts Options) (Result, bool, error) {
	key := k.LayoutKey(GraphHash(nodes, edges, strategy == Force), opts.keyOpts(strategy))

	if data, hit, err := c.Get(ctx, key); err != nil {
		logger.Warn("layout cache read", "err", err)
	} else if hit {
		var res Result
		if err := json.Unmarshal(data, &res); err == nil {
			observability.Cache().OnCacheHit(ctx, "layout")
			return res, true, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, "layout")

	res, err := compute(ctx, nodes, edges, strategy, opts)
	if err != nil {
		return Result{}, false, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := c.Set(ctx, key, data, cache.TTLLayout); err != nil {
			logger.Warn("layout cache write", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "layout", len(data))
		}
	}
	return res, false, nil
}
