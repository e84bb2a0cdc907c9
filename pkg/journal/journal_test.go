package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/flowco/flowsync/pkg/emit"
	"github.com/flowco/flowsync/pkg/flow"
)

func env(session, id string, ts int64) flow.Envelope {
	return flow.Envelope{
		EventID:   id,
		Session:   session,
		Nodes:     []flow.Node{{ID: "1", Position: flow.Position{X: 1, Y: 2}, Deletable: true}},
		Edges:     []flow.Edge{},
		Timestamp: ts,
	}
}

func eventIDs(envs []flow.Envelope) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.EventID
	}
	return out
}

func seed(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []flow.Envelope{
		env("a", "a3", 30),
		env("a", "a1", 10),
		env("b", "b1", 15),
		env("a", "a2", 20),
		env("", "x1", 5),
	} {
		if err := j.Append(ctx, e); err != nil {
			t.Fatalf("Append(%s): %v", e.EventID, err)
		}
	}
}

func testJournal(t *testing.T, j Journal) {
	t.Helper()
	seed(t, j)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all", Query{}, []string{"x1", "a1", "b1", "a2", "a3"}},
		{"session", Query{Session: "a"}, []string{"a1", "a2", "a3"}},
		{"since exclusive", Query{Session: "a", Since: 10}, []string{"a2", "a3"}},
		{"limit keeps newest", Query{Session: "a", Limit: 2}, []string{"a2", "a3"}},
		{"unknown session", Query{Session: "zzz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.List(ctx, tt.q)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if diff := cmp.Diff(tt.want, eventIDs(got)); diff != "" {
				t.Errorf("List(%+v) mismatch (-want +got):\n%s", tt.q, diff)
			}
		})
	}

	sessions, err := j.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if diff := cmp.Diff([]string{"", "a", "b"}, sessions); diff != "" {
		t.Errorf("Sessions mismatch (-want +got):\n%s", diff)
	}

	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := j.Append(ctx, env("a", "late", 99)); !errors.Is(err, ErrClosed) {
		t.Errorf("Append after Close = %v, want ErrClosed", err)
	}
}

func TestMemoryJournal(t *testing.T) {
	testJournal(t, NewMemoryJournal())
}

func TestFileJournal(t *testing.T) {
	j, err := NewFileJournal(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileJournal: %v", err)
	}
	testJournal(t, j)
}

func TestFileJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("NewFileJournal: %v", err)
	}
	ctx := context.Background()

	want := env("s", "e1", 7)
	want.SelectedID = flow.Ref("1")
	want.Command = flow.NewCommand(flow.CommandInspect, "1")
	want.Viewport = &flow.Viewport{X: 1, Y: 2, Zoom: 1.5}
	if err := j.Append(ctx, want); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := j.List(ctx, Query{Session: "s"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List returned %d envelopes, want 1", len(got))
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "s.jsonl")); err != nil {
		t.Errorf("session file: %v", err)
	}
}

func TestFileJournalSkipsTruncatedLine(t *testing.T) {
	dir := t.TempDir()
	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("NewFileJournal: %v", err)
	}
	ctx := context.Background()
	if err := j.Append(ctx, env("s", "ok", 1)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "s.jsonl"), os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"eventId":"broken","nod`)
	f.Close()

	got, err := j.List(ctx, Query{Session: "s"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"ok"}, eventIDs(got)); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestSink(t *testing.T) {
	j := NewMemoryJournal()
	em := emit.New(emit.NewStepClock(100, 1), nil, Sink(j)).WithSession("s1")
	ctx := context.Background()

	for range 3 {
		if _, err := em.Emit(ctx, nil, nil, nil, nil); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	got, err := j.List(ctx, Query{Session: "s1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var stamps []int64
	for _, e := range got {
		stamps = append(stamps, e.Timestamp)
	}
	if diff := cmp.Diff([]int64{100, 101, 102}, stamps); diff != "" {
		t.Errorf("timestamps mismatch (-want +got):\n%s", diff)
	}
}

func TestMongoFilter(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want bson.D
	}{
		{"empty", Query{}, bson.D{}},
		{"session", Query{Session: "s"}, bson.D{{Key: "session", Value: "s"}}},
		{"since", Query{Since: 5}, bson.D{{Key: "timestamp", Value: bson.D{{Key: "$gt", Value: int64(5)}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, mongoFilter(tt.q)); diff != "" {
				t.Errorf("mongoFilter mismatch (-want +got):\n%s", diff)
			}
		})
	}

	opts := mongoFindOptions(Query{Limit: 3})
	if opts.Limit == nil || *opts.Limit != 3 {
		t.Errorf("Limit = %v, want 3", opts.Limit)
	}
	if opts := mongoFindOptions(Query{}); opts.Limit != nil {
		t.Errorf("Limit = %v, want unset", *opts.Limit)
	}
}

func TestListArgs(t *testing.T) {
	args := listArgs(Query{Session: "s", Since: 4})
	if args[0] != "s" || args[1] != int64(4) {
		t.Errorf("listArgs = %v", args)
	}
	if lim := args[2].(*int64); lim != nil {
		t.Errorf("limit = %d, want nil", *lim)
	}
	args = listArgs(Query{Limit: 10})
	if lim := args[2].(*int64); lim == nil || *lim != 10 {
		t.Errorf("limit = %v, want 10", lim)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		opts    Options
		want    string
		wantErr bool
	}{
		{"default", Options{}, "journal.NullJournal", false},
		{"memory", Options{Backend: BackendMemory}, "*journal.MemoryJournal", false},
		{"file", Options{Backend: BackendFile, Path: t.TempDir()}, "*journal.FileJournal", false},
		{"file without path", Options{Backend: BackendFile}, "", true},
		{"mongo without uri", Options{Backend: BackendMongo}, "", true},
		{"postgres without url", Options{Backend: BackendPostgres}, "", true},
		{"unknown", Options{Backend: "sqlite"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := Open(ctx, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Open(%+v) succeeded, want error", tt.opts)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer j.Close()
			if got := typeName(j); got != tt.want {
				t.Errorf("Open type = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case NullJournal:
		return "journal.NullJournal"
	case *MemoryJournal:
		return "*journal.MemoryJournal"
	case *FileJournal:
		return "*journal.FileJournal"
	}
	return "?"
}
