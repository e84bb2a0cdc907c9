package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/layout"
	"github.com/flowco/flowsync/pkg/render"
)

// Output formats of the render command.
const (
	formatDOT = "dot"
	formatSVG = "svg"
	formatPNG = "png"
	formatPDF = "pdf"
)

// validFormats is the set of supported output formats.
var validFormats = map[string]bool{formatDOT: true, formatSVG: true, formatPNG: true, formatPDF: true}

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output    string
	formats   []string
	pinned    bool    // keep the file's positions instead of letting graphviz rank
	detailed  bool    // add kind and content under each label
	direction string  // layout direction, mapped to rankdir
	scale     float64 // PNG scale factor
}

// renderCommand creates the render command for exporting a graph file.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{scale: 2}

	cmd := &cobra.Command{
		Use:   "render [graph.json]",
		Short: "Render a graph file to DOT, SVG, PNG or PDF",
		Long: `Render a graph file to DOT, SVG, PNG or PDF.

Without --pinned, graphviz ranks the graph itself in the configured direction.
With --pinned, nodes are drawn at the positions stored in the file, which is
what 'flowsync layout' produces. PNG and PDF export requires rsvg-convert.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := validateFormats(opts.formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, png, pdf (comma-separated)")
	cmd.Flags().BoolVar(&opts.pinned, "pinned", false, "draw nodes at their stored positions")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show node kind and content")
	cmd.Flags().StringVarP(&opts.direction, "direction", "d", "", "rank direction when not pinned: DOWN, UP, RIGHT, LEFT")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")

	return cmd
}

// validateFormats checks that all requested formats are valid.
func validateFormats(formats []string) error {
	for _, f := range formats {
		if !validFormats[f] {
			return fmt.Errorf("invalid format: %s (must be 'dot', 'svg', 'png', or 'pdf')", f)
		}
	}
	return nil
}

// rankdir maps a layout direction to the Graphviz rankdir attribute.
func rankdir(direction string) (string, error) {
	d, err := layout.ParseDirection(direction)
	if err != nil {
		return "", err
	}
	switch d {
	case layout.Up:
		return "BT", nil
	case layout.Right:
		return "LR", nil
	case layout.Left:
		return "RL", nil
	default:
		return "TB", nil
	}
}

// basePath derives the base output path. A known format extension on output
// is stripped so multiple formats can share it.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if validFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger := loggerFromContext(ctx)

	snap, err := readGraphFile(input)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", input, err)
	}
	logger.Debug("loaded graph", "nodes", len(snap.Nodes), "edges", len(snap.Edges))

	direction := opts.direction
	if direction == "" {
		direction = cfg.Layout.Direction
		if snap.LayoutOptions != nil && snap.LayoutOptions.Direction != "" {
			direction = snap.LayoutOptions.Direction
		}
	}
	rd, err := rankdir(direction)
	if err != nil {
		return err
	}

	dot := render.ToDOT(snap.Nodes, snap.Edges, render.Options{
		Pinned:   opts.pinned,
		Detailed: opts.detailed,
		Rankdir:  rd,
	})

	base := basePath(opts.output, input)
	for _, format := range opts.formats {
		path := base + "." + format
		if len(opts.formats) == 1 && opts.output != "" {
			path = opts.output
		}
		st := startStage(logger, "render", "format", format)
		spin := startSpinner(ctx, fmt.Sprintf("Rendering %s...", format))
		data, err := renderFormat(ctx, dot, format, opts.scale)
		spin.stop()
		if err != nil {
			st.fail(err)
			return fmt.Errorf("render %s: %w", format, err)
		}
		st.end("bytes", len(data))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	printGraphStats(snap.Nodes, snap.Edges, sourceFile)
	return nil
}

// renderFormat produces one output format from DOT source.
func renderFormat(ctx context.Context, dot, format string, scale float64) ([]byte, error) {
	if format == formatDOT {
		return []byte(dot), nil
	}
	svg, err := render.RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	switch format {
	case formatPNG:
		return render.ToPNG(svg, scale)
	case formatPDF:
		return render.ToPDF(svg)
	default:
		return svg, nil
	}
}

// graphSummary is a one-line description used by check and history.
func graphSummary(nodes []flow.Node, edges []flow.Edge) string {
	return fmt.Sprintf("%d nodes, %d edges", len(nodes), len(edges))
}
