// Package emit packages the committed graph into outbound envelopes.
//
// Every envelope carries the full node and edge collections (never a diff),
// the current selection, an optional command, the last known viewport and a
// fresh timestamp from a [Clock]. Envelopes are fanned out to one or more
// [Sink]s: the host connection, a journal, or a recorder in tests.
package emit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/observability"
)

// Clock produces envelope timestamps. Successive calls must never decrease.
type Clock interface {
	Now() int64
}

// WallClock returns Unix milliseconds, bumped by one whenever the wall clock
// has not advanced past the previous value. Timestamps are therefore strictly
// increasing within a session even across clock adjustments.
type WallClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewWallClock creates a wall-clock source.
func NewWallClock() *WallClock {
	return &WallClock{now: time.Now}
}

// Now returns the next timestamp.
func (c *WallClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

// StepClock is a deterministic counter clock: start, start+step, ...
type StepClock struct {
	mu   sync.Mutex
	next int64
	step int64
}

// NewStepClock creates a counter clock. A non-positive step is treated as 1.
func NewStepClock(start, step int64) *StepClock {
	if step <= 0 {
		step = 1
	}
	return &StepClock{next: start, step: step}
}

// Now returns the next counter value.
func (c *StepClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.next
	c.next += c.step
	return v
}

// Sink receives envelopes.
type Sink interface {
	Send(ctx context.Context, env flow.Envelope) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, env flow.Envelope) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, env flow.Envelope) error { return f(ctx, env) }

// Emitter stamps and fans out envelopes. It is safe for concurrent use.
type Emitter struct {
	clock   Clock
	logger  *log.Logger
	session string

	mu       sync.Mutex
	sinks    []Sink
	viewport *flow.Viewport
}

// New creates an emitter. A nil clock uses [NewWallClock]; a nil logger uses
// log.Default().
func New(clock Clock, logger *log.Logger, sinks ...Sink) *Emitter {
	if clock == nil {
		clock = NewWallClock()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Emitter{clock: clock, logger: logger, sinks: sinks}
}

// WithSession tags every envelope with a session id.
func (e *Emitter) WithSession(id string) *Emitter {
	e.session = id
	return e
}

// AddSink registers an additional sink.
func (e *Emitter) AddSink(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// SetViewport records the camera to include in subsequent envelopes.
func (e *Emitter) SetViewport(v *flow.Viewport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v == nil {
		e.viewport = nil
		return
	}
	vp := *v
	e.viewport = &vp
}

// Viewport returns the last recorded camera, or nil.
func (e *Emitter) Viewport() *flow.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.viewport == nil {
		return nil
	}
	vp := *e.viewport
	return &vp
}

// Emit builds an envelope for the given graph and sends it to every sink.
// The envelope is returned even when a sink fails; sink errors are joined.
func (e *Emitter) Emit(ctx context.Context, nodes []flow.Node, edges []flow.Edge, selectedID *string, cmd *flow.Command) (flow.Envelope, error) {
	n, ed := flow.Clone(nodes, edges)
	if n == nil {
		n = []flow.Node{}
	}
	if ed == nil {
		ed = []flow.Edge{}
	}
	env := flow.Envelope{
		EventID:    ulid.Make().String(),
		Session:    e.session,
		Nodes:      n,
		Edges:      ed,
		SelectedID: selectedID,
		Timestamp:  e.clock.Now(),
		Command:    cmd,
		Viewport:   e.Viewport(),
	}

	e.mu.Lock()
	sinks := append([]Sink(nil), e.sinks...)
	e.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Send(ctx, env); err != nil {
			e.logger.Warn("sink rejected envelope", "event", env.EventID, "err", err)
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	cmdName := ""
	if cmd != nil {
		cmdName = cmd.Name
	}
	observability.Reconcile().OnEmit(ctx, cmdName, env.Timestamp, err)
	e.logger.Debug("emitted envelope",
		"event", env.EventID,
		"timestamp", env.Timestamp,
		"nodes", len(env.Nodes),
		"edges", len(env.Edges),
		"selected", flow.Deref(selectedID),
		"command", cmdName)
	return env, err
}

// Recorder is an in-memory sink that keeps every envelope it receives.
type Recorder struct {
	mu   sync.Mutex
	envs []flow.Envelope
}

// Send records env.
func (r *Recorder) Send(_ context.Context, env flow.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

// Envelopes returns a copy of the recorded envelopes.
func (r *Recorder) Envelopes() []flow.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]flow.Envelope(nil), r.envs...)
}

// Len returns the number of recorded envelopes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envs)
}

// Last returns the most recent envelope.
func (r *Recorder) Last() (flow.Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.envs) == 0 {
		return flow.Envelope{}, false
	}
	return r.envs[len(r.envs)-1], true
}
