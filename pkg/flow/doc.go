// Package flow defines the wire types shared by every part of the editor
// engine: nodes, edges, host snapshots and outbound envelopes.
//
// The JSON field names follow the renderer's wire format so that a snapshot
// pushed by the host can be decoded directly, and an [Envelope] produced by
// the emitter can be handed back without translation:
//
//	{
//	  "nodes": [{"id": "1", "type": "input", "position": {"x": 0, "y": 0}, "data": {...}}],
//	  "edges": [{"id": "e1", "source": "1", "target": "2"}],
//	  "timestamp": 1718000000000
//	}
//
// # Ownership
//
// Node and edge slices are values. Functions in this package never mutate
// their arguments; use [Clone] before handing a collection to code that may.
//
// # Adjacency
//
// [Incomers], [Outgoers] and [ConnectedEdges] mirror the helpers the renderer
// exposes, and [NewIndex] builds a reusable adjacency index for algorithms that
// walk the graph repeatedly.
package flow
