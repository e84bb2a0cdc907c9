package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/journal"
)

// historyCommand creates the history command for reading the journal.
func (c *CLI) historyCommand() *cobra.Command {
	var (
		q        journal.Query
		browse   bool
		asJSON   bool
		sessions bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled envelopes",
		Long: `List the envelopes recorded by the configured journal, oldest first.

--tui opens an interactive browser; selecting an envelope prints it as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runHistory(cmd.Context(), q, sessions, browse, asJSON)
		},
	}

	cmd.Flags().StringVar(&q.Session, "session", "", "only this session")
	cmd.Flags().Int64Var(&q.Since, "since", 0, "only envelopes with a later timestamp")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 50, "keep the most recent N envelopes (0 = all)")
	cmd.Flags().BoolVar(&sessions, "sessions", false, "list session ids instead of envelopes")
	cmd.Flags().BoolVar(&browse, "tui", false, "browse interactively")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print envelopes as JSON lines")

	return cmd
}

func (c *CLI) runHistory(ctx context.Context, q journal.Query, sessions, browse, asJSON bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	jr, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		return fmt.Errorf("open %s journal: %w", cfg.Journal.Backend, err)
	}
	defer jr.Close()

	if sessions {
		ids, err := jr.Sessions(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == "" {
				id = "(default)"
			}
			writeLine(id)
		}
		return nil
	}

	envs, err := jr.List(ctx, q)
	if err != nil {
		return err
	}
	if len(envs) == 0 {
		printInfo("Journal is empty")
		return nil
	}

	switch {
	case asJSON:
		enc := json.NewEncoder(console)
		for _, env := range envs {
			if err := enc.Encode(env); err != nil {
				return err
			}
		}
		return nil
	case browse:
		return browseHistory(envs)
	}

	for _, env := range envs {
		writeLine(historyLine(env))
	}
	writeLine("")
	printDetail("%d envelopes", len(envs))
	return nil
}

// browseHistory runs the TUI and prints the selected envelope.
func browseHistory(envs []flow.Envelope) error {
	final, err := tea.NewProgram(NewHistoryModel(envs)).Run()
	if err != nil {
		return err
	}
	m, ok := final.(HistoryModel)
	if !ok || m.Selected == nil {
		return nil
	}
	data, err := json.MarshalIndent(m.Selected, "", "  ")
	if err != nil {
		return err
	}
	writeLine(string(data))
	return nil
}

// historyLine renders one envelope as a single list line.
func historyLine(env flow.Envelope) string {
	line := fmt.Sprintf("%s  %-12s  %s", formatTimestamp(env.Timestamp), shortSession(env.Session), graphSummary(env.Nodes, env.Edges))
	if env.SelectedID != nil {
		line += "  " + StyleHighlight.Render("selected "+*env.SelectedID)
	}
	if env.Command != nil {
		line += "  " + styleCommand.Render(commandLabel(env.Command))
	}
	return line
}

// formatTimestamp shows wall-clock timestamps as local time and small
// counter values as they are.
func formatTimestamp(ts int64) string {
	if ts < 1e12 {
		return fmt.Sprintf("%-12d", ts)
	}
	return time.UnixMilli(ts).Format("Jan 02 15:04:05")
}

func shortSession(id string) string {
	switch {
	case id == "":
		return "-"
	case len(id) > 12:
		return id[:12]
	default:
		return id
	}
}

func commandLabel(cmd *flow.Command) string {
	if cmd == nil {
		return ""
	}
	if cmd.ID == "" {
		return cmd.Name
	}
	return cmd.Name + " " + cmd.ID
}
