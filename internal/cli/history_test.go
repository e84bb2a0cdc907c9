package cli

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/flowco/flowsync/pkg/flow"
)

func envelopes(n int) []flow.Envelope {
	envs := make([]flow.Envelope, n)
	for i := range envs {
		envs[i] = flow.Envelope{
			EventID:   string(rune('a' + i)),
			Session:   "s1",
			Timestamp: int64(i + 1),
			Nodes:     []flow.Node{{ID: "1"}},
			Edges:     []flow.Edge{},
		}
	}
	return envs
}

func TestFormatTimestamp(t *testing.T) {
	if got := strings.TrimSpace(formatTimestamp(42)); got != "42" {
		t.Errorf("formatTimestamp(42) = %q, want counter value", got)
	}
	ms := time.Date(2026, 3, 14, 15, 9, 26, 0, time.Local).UnixMilli()
	if got := formatTimestamp(ms); got != "Mar 14 15:09:26" {
		t.Errorf("formatTimestamp(wall) = %q", got)
	}
}

func TestShortSession(t *testing.T) {
	tests := map[string]string{
		"":                                     "-",
		"abc":                                  "abc",
		"0190f3b2-7c4e-7d1a-9a55-0cf1e2d3a4b5": "0190f3b2-7c4",
	}
	for in, want := range tests {
		if got := shortSession(in); got != want {
			t.Errorf("shortSession(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHistoryLine(t *testing.T) {
	env := flow.Envelope{
		Timestamp:  7,
		Session:    "s1",
		Nodes:      []flow.Node{{ID: "1"}, {ID: "2"}},
		Edges:      []flow.Edge{{ID: "e", Source: "1", Target: "2"}},
		SelectedID: flow.Ref("2"),
		Command:    flow.NewCommand(flow.CommandInspect, "1"),
	}
	line := historyLine(env)
	for _, want := range []string{"s1", "2 nodes, 1 edges", "selected 2", "inspect 1"} {
		if !strings.Contains(line, want) {
			t.Errorf("historyLine() = %q, missing %q", line, want)
		}
	}
}

func TestHistoryModelStartsOnNewest(t *testing.T) {
	m := NewHistoryModel(envelopes(20))
	if m.Cursor != 19 {
		t.Errorf("Cursor = %d, want 19", m.Cursor)
	}
	if m.Offset != 19-m.Height+1 {
		t.Errorf("Offset = %d, want cursor on the last visible row", m.Offset)
	}
}

func TestHistoryModelNavigation(t *testing.T) {
	key := func(s string) tea.KeyMsg {
		switch s {
		case "up":
			return tea.KeyMsg{Type: tea.KeyUp}
		case "enter":
			return tea.KeyMsg{Type: tea.KeyEnter}
		}
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	send := func(m HistoryModel, s string) (HistoryModel, tea.Cmd) {
		next, cmd := m.Update(key(s))
		return next.(HistoryModel), cmd
	}

	m := NewHistoryModel(envelopes(3))
	m, _ = send(m, "up")
	m, _ = send(m, "k")
	if m.Cursor != 0 {
		t.Fatalf("Cursor = %d after two ups, want 0", m.Cursor)
	}
	m, _ = send(m, "k")
	if m.Cursor != 0 {
		t.Errorf("Cursor moved above the first row")
	}
	m, _ = send(m, "G")
	if m.Cursor != 2 {
		t.Errorf("Cursor = %d after G, want 2", m.Cursor)
	}
	m, _ = send(m, "g")
	m, cmd := send(m, "enter")
	if m.Selected == nil || m.Selected.EventID != "a" {
		t.Errorf("Selected = %+v, want the first envelope", m.Selected)
	}
	if cmd == nil {
		t.Error("enter should quit the program")
	}
}

func TestHistoryModelEmpty(t *testing.T) {
	m := NewHistoryModel(nil)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if next.(HistoryModel).Selected != nil {
		t.Error("enter on an empty journal selected something")
	}
	if !strings.Contains(m.View(), "Journal") {
		t.Error("View() should render the title")
	}
}

func TestHistoryModelWindowResize(t *testing.T) {
	m := NewHistoryModel(envelopes(30))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	m = next.(HistoryModel)
	if m.Height != 5 {
		t.Errorf("Height = %d, want the minimum of 5", m.Height)
	}
	if m.Cursor < m.Offset || m.Cursor >= m.Offset+m.Height {
		t.Errorf("cursor %d outside window [%d, %d)", m.Cursor, m.Offset, m.Offset+m.Height)
	}
}
