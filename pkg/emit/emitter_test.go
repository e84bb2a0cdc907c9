package emit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/flowco/flowsync/pkg/flow"
)

func TestWallClockMonotonic(t *testing.T) {
	fixed := time.UnixMilli(1000)
	c := &WallClock{now: func() time.Time { return fixed }}

	prev := int64(0)
	for i := 0; i < 5; i++ {
		got := c.Now()
		if got <= prev {
			t.Fatalf("Now() = %d after %d, want strictly increasing", got, prev)
		}
		prev = got
	}
	if prev != 1004 {
		t.Errorf("last = %d, want 1004", prev)
	}
}

func TestStepClock(t *testing.T) {
	c := NewStepClock(100, 0)
	for _, want := range []int64{100, 101, 102} {
		if got := c.Now(); got != want {
			t.Errorf("Now() = %d, want %d", got, want)
		}
	}
}

func TestEmitFullCollections(t *testing.T) {
	rec := &Recorder{}
	e := New(NewStepClock(10, 5), nil, rec).WithSession("s1")
	e.SetViewport(&flow.Viewport{X: 1, Y: 2, Zoom: 1.5})

	nodes := []flow.Node{{ID: "a", Data: map[string]any{"k": "v"}}}
	env, err := e.Emit(context.Background(), nodes, nil, flow.Ref("a"), nil)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if env.Timestamp != 10 || env.Session != "s1" || env.EventID == "" {
		t.Errorf("envelope header = %+v", env)
	}
	if env.Edges == nil || len(env.Nodes) != 1 {
		t.Errorf("collections = %v / %v", env.Nodes, env.Edges)
	}
	if env.Viewport == nil || env.Viewport.Zoom != 1.5 {
		t.Errorf("viewport = %v", env.Viewport)
	}

	nodes[0].Data["k"] = "changed"
	if got := env.Nodes[0].DataString("k"); got != "v" {
		t.Errorf("envelope aliases caller data: %q", got)
	}
	if rec.Len() != 1 {
		t.Errorf("recorded %d envelopes, want 1", rec.Len())
	}

	next, _ := e.Emit(context.Background(), nodes, nil, nil, nil)
	if next.Timestamp <= env.Timestamp || next.EventID == env.EventID {
		t.Errorf("second envelope not fresh: %d/%s", next.Timestamp, next.EventID)
	}
}

func TestEmitNullFields(t *testing.T) {
	e := New(NewStepClock(1, 1), nil)
	env, _ := e.Emit(context.Background(), nil, nil, nil, nil)

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"selectedId", "command", "viewport"} {
		v, ok := m[key]
		if !ok || v != nil {
			t.Errorf("%s = %v (present %v), want null", key, v, ok)
		}
	}
	if _, ok := m["nodes"].([]any); !ok {
		t.Errorf("nodes = %v, want empty array", m["nodes"])
	}
}

func TestEmitSinkErrorStillDelivers(t *testing.T) {
	boom := errors.New("boom")
	rec := &Recorder{}
	failing := SinkFunc(func(context.Context, flow.Envelope) error { return boom })
	e := New(NewStepClock(1, 1), nil, failing, rec)

	_, err := e.Emit(context.Background(), nil, nil, nil, flow.NewCommand(flow.CommandRun, "x"))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	last, ok := rec.Last()
	if !ok || last.Command == nil || last.Command.Name != flow.CommandRun {
		t.Errorf("recorder missed envelope: %+v", last)
	}
}

func TestCaptureDataURL(t *testing.T) {
	c := CapturerFunc(func(context.Context) ([]byte, error) { return []byte("png"), nil })
	got, err := CaptureDataURL(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if want := "data:image/png;base64,cG5n"; got != want {
		t.Errorf("CaptureDataURL = %q, want %q", got, want)
	}
	if _, err := CaptureDataURL(context.Background(), nil); err == nil {
		t.Error("nil capturer: want error")
	}
}
