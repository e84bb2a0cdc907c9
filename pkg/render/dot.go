package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/flowco/flowsync/pkg/flow"
)

// Options configures DOT generation.
type Options struct {
	// Pinned writes node positions as fixed coordinates for neato.
	Pinned bool
	// Detailed adds the node kind and content below the label.
	Detailed bool
	// Rankdir is used when not pinned. Defaults to TB.
	Rankdir string
}

// ToDOT converts a flow graph to Graphviz DOT. Locked nodes are drawn with a
// bold outline, satellites dashed, and animated edges dashed.
func ToDOT(nodes []flow.Node, edges []flow.Edge, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	if opts.Pinned {
		buf.WriteString("  layout=neato;\n")
		buf.WriteString("  splines=true;\n")
	} else {
		rankdir := opts.Rankdir
		if rankdir == "" {
			rankdir = "TB"
		}
		fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	}
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, n := range nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(fmtAttrs(n, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range edges {
		var attrs []string
		if e.Label != "" {
			attrs = append(attrs, fmt.Sprintf("label=%q", e.Label))
		}
		if e.Animated {
			attrs = append(attrs, "style=dashed")
		}
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// Label returns the text shown for a node: its pill, then content, then id.
func Label(n flow.Node) string {
	if s := n.DataString(flow.DataPill); s != "" {
		return s
	}
	if s := n.DataString(flow.DataContent); s != "" {
		return s
	}
	return n.ID
}

func fmtAttrs(n flow.Node, opts Options) []string {
	label := Label(n)
	if opts.Detailed {
		kind := n.Kind
		if kind == "" {
			kind = flow.KindDefault
		}
		label += "\n" + string(kind)
		if c := n.DataString(flow.DataContent); c != "" && c != Label(n) {
			label += "\n" + c
		}
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}

	d := n.Dimensions()
	if opts.Pinned {
		// neato reads pinned positions in inches with y up.
		c := n.Center()
		attrs = append(attrs,
			fmt.Sprintf("pos=\"%s,%s!\"", inches(c.X), inches(-c.Y)),
			fmt.Sprintf("width=%s", inches(d.Width)),
			fmt.Sprintf("height=%s", inches(d.Height)),
			"fixedsize=true")
	}
	switch {
	case n.IsLocked():
		attrs = append(attrs, "penwidth=2.5")
	case n.IsSatellite():
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

func inches(px float64) string { return strconv.FormatFloat(px/72, 'f', 4, 64) }

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the image scales to its
// viewBox instead of Graphviz's point-based width and height.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
