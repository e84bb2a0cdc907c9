package layout

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/flowco/flowsync/pkg/flow"
)

// pointsPerInch converts Graphviz inches to flow pixels.
const pointsPerInch = 72.0

// plainFormat is Graphviz's line-oriented output: one "node name x y w h ..."
// line per node with centers in inches and the y axis pointing up.
const plainFormat = graphviz.Format("plain")

var rankdirs = map[Direction]string{
	Down:  "TB",
	Up:    "BT",
	Right: "LR",
	Left:  "RL",
}

// layered runs Graphviz dot and reads node centers back.
func layered(ctx context.Context, nodes []flow.Node, edges []flow.Edge, opts Options) (Result, error) {
	dot, names := layeredDOT(nodes, edges, opts)

	gv, err := graphviz.New(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return Result{}, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, plainFormat, &buf); err != nil {
		return Result{}, fmt.Errorf("render: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	centers, err := parsePlain(buf.Bytes())
	if err != nil {
		return Result{}, err
	}

	nodesByID := byID(nodes)
	pos := make(map[string]flow.Position, len(names))
	for name, id := range names {
		c, ok := centers[name]
		if !ok {
			return Result{}, fmt.Errorf("graphviz dropped node %q", id)
		}
		d := nodesByID[id].Dimensions()
		pos[id] = flow.Position{X: c.X - d.Width/2, Y: c.Y - d.Height/2}
	}
	return Result{Positions: pos}, nil
}

// layeredDOT builds the input graph. Nodes get synthetic names n0, n1, ... so
// that arbitrary ids never need DOT quoting; names maps them back. Sizes are
// fixed from the node dimensions.
func layeredDOT(nodes []flow.Node, edges []flow.Edge, opts Options) (string, map[string]string) {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdirs[opts.Direction])
	fmt.Fprintf(&buf, "  nodesep=%s;\n", inches(opts.NodeSpacing))
	fmt.Fprintf(&buf, "  ranksep=%s;\n", inches(opts.LayerSpacing))
	if opts.ModelOrder {
		buf.WriteString("  ordering=out;\n")
	}
	buf.WriteString("  node [shape=box, fixedsize=true, label=\"\"];\n\n")

	names := make(map[string]string, len(nodes))
	nameOf := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if _, dup := nameOf[n.ID]; dup {
			continue
		}
		name := "n" + strconv.Itoa(len(names))
		names[name] = n.ID
		nameOf[n.ID] = name
		d := n.Dimensions()
		fmt.Fprintf(&buf, "  %s [width=%s, height=%s];\n", name, inches(d.Width), inches(d.Height))
	}

	buf.WriteString("\n")
	for _, e := range edges {
		s, okS := nameOf[e.Source]
		t, okT := nameOf[e.Target]
		if !okS || !okT {
			continue
		}
		fmt.Fprintf(&buf, "  %s -> %s;\n", s, t)
	}
	buf.WriteString("}\n")
	return buf.String(), names
}

func inches(px float64) string {
	return strconv.FormatFloat(px/pointsPerInch, 'f', 4, 64)
}

// parsePlain reads node centers from plain output, converting to pixels with
// the y axis pointing down.
func parsePlain(out []byte) (map[string]flow.Position, error) {
	var height float64
	centers := make(map[string]flow.Position)

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "graph":
			if len(fields) < 4 {
				return nil, fmt.Errorf("malformed graph line %q", sc.Text())
			}
			h, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, fmt.Errorf("graph height: %w", err)
			}
			height = h
		case "node":
			if len(fields) < 4 {
				return nil, fmt.Errorf("malformed node line %q", sc.Text())
			}
			x, errX := strconv.ParseFloat(fields[2], 64)
			y, errY := strconv.ParseFloat(fields[3], 64)
			if errX != nil || errY != nil {
				return nil, fmt.Errorf("node %s: bad coordinates", fields[1])
			}
			centers[strings.Trim(fields[1], `"`)] = flow.Position{
				X: x * pointsPerInch,
				Y: (height - y) * pointsPerInch,
			}
		case "stop":
			return centers, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return centers, nil
}
