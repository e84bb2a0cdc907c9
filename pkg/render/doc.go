// Package render draws flow graphs as static images.
//
// [ToDOT] converts nodes and edges to Graphviz DOT. With Options.Pinned the
// current node positions are written as fixed "pos" attributes, so the image
// matches what the editor shows; otherwise dot computes its own layout.
// [RenderSVG] renders DOT in-process with go-graphviz, and [ToPNG]/[ToPDF]
// convert SVG with the external rsvg-convert tool.
//
//	dot := render.ToDOT(nodes, edges, render.Options{Pinned: true})
//	svg, err := render.RenderSVG(ctx, dot)
//	png, err := render.ToPNG(svg, 2.0)
//
// A [Capturer] adapts this pipeline to the sketch command, which asks for an
// image of the current view.
package render
