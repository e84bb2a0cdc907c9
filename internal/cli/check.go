package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/rewire"
	"github.com/flowco/flowsync/pkg/validate"
)

// checkCommand creates the check command for dry-running structural edits.
func (c *CLI) checkCommand() *cobra.Command {
	var (
		connects []string
		deletes  []string
	)

	cmd := &cobra.Command{
		Use:   "check [graph.json]",
		Short: "Validate candidate edges or preview node deletion",
		Long: `Validate candidate edges or preview node deletion against a graph file.

--connect source:target checks whether the edge could be added: it must not
duplicate an existing edge, loop on one node, or close a cycle. Each candidate
is checked against the file as is.

--delete id previews which nodes would be removed and which bridge edges would
reconnect their incomers to their outgoers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(connects) == 0 && len(deletes) == 0 {
				return fmt.Errorf("nothing to check: pass --connect or --delete")
			}
			return c.runCheck(cmd.Context(), args[0], connects, deletes)
		},
	}

	cmd.Flags().StringArrayVar(&connects, "connect", nil, "candidate edge as source:target (repeatable)")
	cmd.Flags().StringSliceVar(&deletes, "delete", nil, "node ids to delete (comma-separated)")

	return cmd
}

func (c *CLI) runCheck(ctx context.Context, input string, connects, deletes []string) error {
	snap, err := readGraphFile(input)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", input, err)
	}
	loggerFromContext(ctx).Debug("loaded graph", "summary", graphSummary(snap.Nodes, snap.Edges))

	rejected := 0
	for _, s := range connects {
		conn, err := parseConnection(s)
		if err != nil {
			return err
		}
		if err := validate.Check(conn, snap.Nodes, snap.Edges); err != nil {
			rejected++
			printError("%s -> %s: %s", conn.Source, conn.Target, errors.UserMessage(err))
			continue
		}
		printSuccess("%s -> %s can be connected", conn.Source, conn.Target)
	}

	if len(deletes) > 0 {
		printDeletePreview(previewDelete(deletes, snap.Nodes, snap.Edges))
	}

	if rejected > 0 {
		return errors.New(errors.ErrCodeStructuralRejection, "%d of %d connections rejected", rejected, len(connects))
	}
	return nil
}

// parseConnection parses "source:target".
func parseConnection(s string) (validate.Connection, error) {
	source, target, ok := strings.Cut(s, ":")
	if !ok || source == "" || target == "" {
		return validate.Connection{}, errors.New(errors.ErrCodeInvalidInput, "invalid connection %q (want source:target)", s)
	}
	return validate.Connection{Source: source, Target: target}, nil
}

// deletePreview describes the outcome of deleting nodes.
type deletePreview struct {
	Removed []string
	Skipped []string // requested but unknown or not deletable
	Dropped []flow.Edge
	Bridges []flow.Edge
}

func previewDelete(ids []string, nodes []flow.Node, edges []flow.Edge) deletePreview {
	_, rewired, removed := rewire.DeleteNodes(ids, nodes, edges)

	var p deletePreview
	gone := make(map[string]bool, len(removed))
	for _, n := range removed {
		p.Removed = append(p.Removed, n.ID)
		gone[n.ID] = true
	}
	for _, id := range ids {
		if !gone[id] {
			p.Skipped = append(p.Skipped, id)
		}
	}

	before := make(map[string]bool, len(edges))
	for _, e := range edges {
		before[e.ID] = true
	}
	after := make(map[string]bool, len(rewired))
	for _, e := range rewired {
		after[e.ID] = true
		if !before[e.ID] {
			p.Bridges = append(p.Bridges, e)
		}
	}
	for _, e := range edges {
		if !after[e.ID] {
			p.Dropped = append(p.Dropped, e)
		}
	}
	return p
}

func printDeletePreview(p deletePreview) {
	if len(p.Removed) == 0 {
		printWarning("No deletable node among the requested ids")
	} else {
		printInfo("Deleting %s", strings.Join(p.Removed, ", "))
	}
	for _, id := range p.Skipped {
		printDetail("skipped %s (unknown or not deletable)", id)
	}
	for _, e := range p.Dropped {
		printDetail("drop   %s", formatEdge(e))
	}
	for _, e := range p.Bridges {
		printDetail("bridge %s", formatEdge(e))
	}
}
