// Package layout turns a graph topology into 2-D node positions.
//
// Three strategies are available:
//
//   - [Layered] delegates to Graphviz dot (through go-graphviz) and reads node
//     centers back from the "plain" output format.
//   - [Tree] is a native, deterministic rank layout: longest-path layering,
//     barycentric crossing reduction, centered rank placement.
//   - [Force] is a force-directed simulation seeded from current positions,
//     with link, repulsion, collision and satellite forces.
//
// [Layout] runs a strategy synchronously. An [Orchestrator] runs layouts in
// the background for an editor session: a new request cancels the previous
// one, results are cached, and the commit is a compare-and-swap against the
// store version the run started from, so a layout never overwrites an edit
// that happened while it was computing.
//
// All positions are top-left corners in flow coordinates.
package layout
