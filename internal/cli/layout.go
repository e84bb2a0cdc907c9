package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/layout"
)

// layoutFlags are the command-line overrides of the layout settings. Zero
// values keep the underlying setting.
type layoutFlags struct {
	strategy     string
	direction    string
	nodeSpacing  float64
	layerSpacing float64
	iterations   int
}

func (f layoutFlags) apply(s flow.LayoutSettings) flow.LayoutSettings {
	if f.strategy != "" {
		s.Strategy = f.strategy
	}
	if f.direction != "" {
		s.Direction = f.direction
	}
	if f.nodeSpacing > 0 {
		s.NodeNodeSpacing = f.nodeSpacing
	}
	if f.layerSpacing > 0 {
		s.NodeLayerSpacing = f.layerSpacing
	}
	if f.iterations > 0 {
		s.Iterations = f.iterations
	}
	return s
}

// layoutCommand creates the layout command for computing node positions.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output  string
		noCache bool
		flags   layoutFlags
	)

	cmd := &cobra.Command{
		Use:   "layout [graph.json]",
		Short: "Compute node positions for a graph file",
		Long: `Compute node positions for a graph file.

The input is a snapshot-shaped JSON file with "nodes" and "edges". The file's
"layoutOptions" replace the [layout] config section, and the flags below
override both. The output is the same graph with positions filled in.

Results are cached by graph shape and settings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], output, noCache, flags)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVarP(&flags.strategy, "strategy", "s", "", "layout strategy: layered, tree, force")
	cmd.Flags().StringVarP(&flags.direction, "direction", "d", "", "flow direction: DOWN, UP, RIGHT, LEFT")
	cmd.Flags().Float64Var(&flags.nodeSpacing, "node-spacing", 0, "spacing between sibling nodes")
	cmd.Flags().Float64Var(&flags.layerSpacing, "layer-spacing", 0, "spacing between layers")
	cmd.Flags().IntVar(&flags.iterations, "iterations", 0, "force simulation iteration cap")

	return cmd
}

// runLayout loads the graph, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, input, output string, noCache bool, flags layoutFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	snap, err := readGraphFile(input)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", input, err)
	}

	settings := cfg.Layout
	if snap.LayoutOptions != nil {
		settings = *snap.LayoutOptions
	}
	settings = flags.apply(settings)
	strategy, opts, err := layout.FromSettings(&settings)
	if err != nil {
		return err
	}

	cc, err := c.openCache(ctx, cfg, noCache)
	if err != nil {
		return err
	}
	defer cc.Close()

	logger := loggerFromContext(ctx)
	st := startStage(logger, "layout", "strategy", strategy, "nodes", len(snap.Nodes))
	spin := startSpinner(ctx, fmt.Sprintf("Computing %s layout...", strategy))

	res, cacheHit, err := layout.Cached(ctx, cc, cfg.Cache.Keyer(), logger, snap.Nodes, snap.Edges, strategy, opts)
	spin.stop()
	if spin.cancelled() {
		return ctx.Err()
	}
	if err != nil {
		st.fail(err)
		printError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	st.end("placed", len(res.Positions), "cached", cacheHit)
	printSuccess("Layout complete")

	snap.Nodes = res.Apply(snap.Nodes)
	snap.LayoutOptions = &settings

	outputPath := output
	if outputPath == "" {
		outputPath = strings.TrimSuffix(input, filepath.Ext(input)) + ".layout.json"
	}
	if err := writeGraphFile(snap, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	src := sourceComputed
	if cacheHit {
		src = sourceCached
	}
	printFile(outputPath)
	printGraphStats(snap.Nodes, snap.Edges, src)
	if strategy == layout.Force {
		printDetail("%d iterations, converged: %v", res.Iterations, res.Converged)
	}
	printNextStep("Render", "flowsync render "+outputPath)

	return nil
}
