package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/flowco/flowsync/pkg/flow"
)

// ToPDF converts SVG bytes to PDF using rsvg-convert.
func ToPDF(svg []byte) ([]byte, error) {
	return rsvgConvert(svg, "pdf")
}

// ToPNG converts SVG bytes to PNG using rsvg-convert with the given scale factor.
func ToPNG(svg []byte, scale float64) ([]byte, error) {
	return rsvgConvert(svg, "png", "-z", fmt.Sprintf("%.2f", scale))
}

func rsvgConvert(svg []byte, format string, extraArgs ...string) ([]byte, error) {
	if _, err := exec.LookPath("rsvg-convert"); err != nil {
		return nil, fmt.Errorf("%s export requires librsvg. Install with:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin", format)
	}

	args := append([]string{"-f", format}, extraArgs...)
	cmd := exec.Command("rsvg-convert", args...)
	cmd.Stdin = bytes.NewReader(svg)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rsvg-convert: %v: %s", err, errBuf.String())
	}
	return out.Bytes(), nil
}

// Capturer renders a graph snapshot to PNG. It satisfies emit.Capturer when
// bound to a graph source.
type Capturer struct {
	// Graph returns the graph to draw.
	Graph func() ([]flow.Node, []flow.Edge)
	Scale float64
}

// Capture draws the current graph at its pinned positions.
func (c Capturer) Capture(ctx context.Context) ([]byte, error) {
	if c.Graph == nil {
		return nil, fmt.Errorf("capturer has no graph source")
	}
	nodes, edges := c.Graph()
	svg, err := RenderSVG(ctx, ToDOT(nodes, edges, Options{Pinned: true}))
	if err != nil {
		return nil, err
	}
	scale := c.Scale
	if scale <= 0 {
		scale = 1
	}
	return ToPNG(svg, scale)
}
