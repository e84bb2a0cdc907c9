package layout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/flowco/flowsync/pkg/cache"
	ferrors "github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/store"
)

type countingPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *countingPublisher) Publish(context.Context, *string, *flow.Command) (flow.Envelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return flow.Envelope{}, nil
}

func (p *countingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

const blocking Strategy = "blocking"

// blockingCompute blocks the "blocking" strategy until its context ends and
// delegates everything else to Layout.
func blockingCompute(started chan<- struct{}) func(context.Context, []flow.Node, []flow.Edge, Strategy, Options) (Result, error) {
	return func(ctx context.Context, nodes []flow.Node, edges []flow.Edge, s Strategy, o Options) (Result, error) {
		if s == blocking {
			started <- struct{}{}
			<-ctx.Done()
			return Result{}, ctx.Err()
		}
		return Layout(ctx, nodes, edges, s, o)
	}
}

func TestOrchestratorCommitsAndFitsOnce(t *testing.T) {
	nodes, edges := chainGraph("a", "b", "c")
	st := store.New(nodes, edges)
	pub := &countingPublisher{}
	var fits atomic.Int32
	o := NewOrchestrator(st, pub, WithFitHandler(func() { fits.Add(1) }))
	defer o.Close()

	run := o.Start(context.Background(), Tree, DefaultOptions())
	res, err := run.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !run.Committed() || fits.Load() != 1 || pub.Count() != 1 {
		t.Errorf("committed %v, fits %d, publishes %d", run.Committed(), fits.Load(), pub.Count())
	}
	n, _ := st.Node("c")
	if n.Position != res.Positions["c"] {
		t.Errorf("store position %v, want %v", n.Position, res.Positions["c"])
	}
}

func TestOrchestratorCancelAndReplace(t *testing.T) {
	nodes, edges := chainGraph("a", "b")
	st := store.New(nodes, edges)
	pub := &countingPublisher{}
	started := make(chan struct{}, 1)
	o := NewOrchestrator(st, pub)
	o.compute = blockingCompute(started)
	defer o.Close()

	first := o.Start(context.Background(), blocking, DefaultOptions())
	<-started
	second := o.Start(context.Background(), Tree, DefaultOptions())

	if _, err := first.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("first run err = %v, want context.Canceled", err)
	}
	if first.Committed() {
		t.Error("cancelled run committed")
	}
	if _, err := second.Wait(); err != nil || !second.Committed() {
		t.Errorf("second run: err %v, committed %v", err, second.Committed())
	}
	if pub.Count() != 1 {
		t.Errorf("publishes = %d, want 1", pub.Count())
	}
}

func TestOrchestratorDiscardsStaleRun(t *testing.T) {
	nodes, edges := chainGraph("a", "b")
	st := store.New(nodes, edges)
	o := NewOrchestrator(st, &countingPublisher{})

	view := st.Current()
	st.Replace(nodes, nil) // a newer edit lands while the layout computes

	res, _ := Layout(context.Background(), view.Nodes, view.Edges, Tree, DefaultOptions())
	if o.commit(context.Background(), view, res) {
		t.Fatal("stale layout committed")
	}
	if got := st.Current(); len(got.Edges) != 0 {
		t.Errorf("newer commit overwritten: %v", got.Edges)
	}
}

func TestOrchestratorUsesCache(t *testing.T) {
	nodes, edges := chainGraph("a", "b", "c")
	st := store.New(nodes, edges)
	mem := cache.NewMemoryCache()
	var computed atomic.Int32
	o := NewOrchestrator(st, &countingPublisher{}, WithCache(mem, nil))
	o.compute = func(ctx context.Context, n []flow.Node, e []flow.Edge, s Strategy, opts Options) (Result, error) {
		computed.Add(1)
		return Layout(ctx, n, e, s, opts)
	}
	defer o.Close()

	first := o.Start(context.Background(), Tree, DefaultOptions())
	if _, err := first.Wait(); err != nil {
		t.Fatal(err)
	}
	// Tree ignores positions, so the moved graph has the same key.
	second := o.Start(context.Background(), Tree, DefaultOptions())
	if _, err := second.Wait(); err != nil {
		t.Fatal(err)
	}
	if computed.Load() != 1 || !second.Cached() || mem.Len() != 1 {
		t.Errorf("computed %d times, cached %v, entries %d", computed.Load(), second.Cached(), mem.Len())
	}
}

func TestOrchestratorFailureLeavesPositions(t *testing.T) {
	nodes, edges := chainGraph("a", "b")
	nodes[0].Position = flow.Position{X: 7, Y: 7}
	st := store.New(nodes, edges)
	pub := &countingPublisher{}
	o := NewOrchestrator(st, pub)
	o.compute = func(context.Context, []flow.Node, []flow.Edge, Strategy, Options) (Result, error) {
		return Result{}, errors.New("boom")
	}

	if _, err := o.Start(context.Background(), Tree, DefaultOptions()).Wait(); err == nil {
		t.Fatal("want error")
	}
	o.Close()
	if n, _ := st.Node("a"); n.Position != (flow.Position{X: 7, Y: 7}) || pub.Count() != 0 {
		t.Errorf("failed layout changed state: %v, %d publishes", n.Position, pub.Count())
	}
}

func TestCachedStoresAndHits(t *testing.T) {
	nodes, edges := chainGraph("a", "b", "c")
	mem := cache.NewMemoryCache()
	ctx := context.Background()

	first, hit, err := Cached(ctx, mem, nil, nil, nodes, edges, Tree, DefaultOptions())
	if err != nil || hit {
		t.Fatalf("first Cached() = hit %v, err %v; want a computed miss", hit, err)
	}
	second, hit, err := Cached(ctx, mem, nil, nil, nodes, edges, Tree, DefaultOptions())
	if err != nil || !hit {
		t.Fatalf("second Cached() = hit %v, err %v; want a hit", hit, err)
	}
	if len(second.Positions) != len(first.Positions) || second.Positions["c"] != first.Positions["c"] {
		t.Errorf("cached result %v differs from computed %v", second.Positions, first.Positions)
	}

	opts := DefaultOptions()
	opts.LayerSpacing = 250
	if _, hit, _ := Cached(ctx, mem, nil, nil, nodes, edges, Tree, opts); hit {
		t.Error("different options must not share a cache entry")
	}
}

func TestCachedNilCacheComputes(t *testing.T) {
	nodes, edges := chainGraph("a", "b")
	res, hit, err := Cached(context.Background(), nil, nil, nil, nodes, edges, Tree, DefaultOptions())
	if err != nil || hit || len(res.Positions) != 2 {
		t.Errorf("Cached(nil cache) = %v, %v, %v", res, hit, err)
	}
}

const panicking Strategy = "panicking"

// registerPanicking adds a strategy that panics for the duration of the test.
func registerPanicking(t *testing.T) {
	t.Helper()
	strategies[panicking] = func(context.Context, []flow.Node, []flow.Edge, Options) (Result, error) {
		panic("boom")
	}
	t.Cleanup(func() { delete(strategies, panicking) })
}

func TestLayoutRecoversPanic(t *testing.T) {
	registerPanicking(t)
	nodes, edges := chainGraph("a", "b")

	res, err := Layout(context.Background(), nodes, edges, panicking, DefaultOptions())
	if !ferrors.Is(err, ferrors.ErrCodeLayoutFailure) {
		t.Fatalf("err = %v, want LAYOUT_FAILURE", err)
	}
	if res.Positions != nil {
		t.Errorf("positions = %v, want none", res.Positions)
	}
}

func TestOrchestratorPanicLeavesStoreUntouched(t *testing.T) {
	registerPanicking(t)
	nodes, edges := chainGraph("a", "b")
	st := store.New(nodes, edges)
	before := st.Version()
	pub := &countingPublisher{}
	var fits atomic.Int32
	o := NewOrchestrator(st, pub, WithFitHandler(func() { fits.Add(1) }))
	defer o.Close()

	run := o.Start(context.Background(), panicking, DefaultOptions())
	if _, err := run.Wait(); !ferrors.Is(err, ferrors.ErrCodeLayoutFailure) {
		t.Fatalf("err = %v, want LAYOUT_FAILURE", err)
	}
	if run.Committed() || st.Version() != before {
		t.Errorf("committed %v, version %d -> %d; want no commit", run.Committed(), before, st.Version())
	}
	if pub.Count() != 0 || fits.Load() != 0 {
		t.Errorf("publishes %d, fits %d; want none", pub.Count(), fits.Load())
	}
}
