package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/flowco/flowsync/pkg/flow"
)

// List styles
var (
	listDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	listHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// HistoryModel - Interactive journal browser
// =============================================================================

// HistoryModel is the bubbletea model for browsing journaled envelopes.
type HistoryModel struct {
	Envelopes []flow.Envelope
	Cursor    int
	Selected  *flow.Envelope
	Height    int
	Offset    int
}

// NewHistoryModel creates a browser positioned on the newest envelope.
func NewHistoryModel(envs []flow.Envelope) HistoryModel {
	m := HistoryModel{Envelopes: envs, Height: 15}
	if len(envs) > 0 {
		m.Cursor = len(envs) - 1
		m.scroll()
	}
	return m
}

func (m HistoryModel) Init() tea.Cmd {
	return nil
}

func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Envelopes)-1 {
				m.Cursor++
			}
		case "home", "g":
			m.Cursor = 0
		case "end", "G":
			m.Cursor = max(len(m.Envelopes)-1, 0)
		case "enter":
			if len(m.Envelopes) == 0 {
				return m, nil
			}
			env := m.Envelopes[m.Cursor]
			m.Selected = &env
			return m, tea.Quit
		}
		m.scroll()
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
		m.scroll()
	}
	return m, nil
}

// scroll keeps the cursor inside the visible window.
func (m *HistoryModel) scroll() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m HistoryModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Journal"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  g/G first/last  ⏎ print  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Envelopes))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		env := m.Envelopes[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			formatTimestamp(env.Timestamp),
			shortSession(env.Session),
			fmt.Sprint(len(env.Nodes)),
			fmt.Sprint(len(env.Edges)),
			orDash(flow.Deref(env.SelectedID)),
			orDash(commandLabel(env.Command)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Time", "Session", "Nodes", "Edges", "Selected", "Command").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return listHeaderStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Envelopes) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if col == 3 || col == 4 {
				base = base.Foreground(colorGray)
			}
			if col == 6 && m.Envelopes[idx].Command != nil {
				base = base.Foreground(colorLink)
			}
			if idx == m.Cursor {
				return base.Bold(true).Foreground(colorAccent)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Envelopes))))

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
