// Package pkg holds the flowsync libraries.
//
// # Overview
//
// flowsync is the engine behind an embeddable node-graph editor. A host
// application pushes complete graph snapshots; the user edits the same graph
// locally; flowsync decides which side wins, keeps the graph structurally
// sound, lays it out, and reports every change back as a full envelope.
//
// The packages split along that data flow:
//
//  1. [flow] - Node, Edge, Snapshot, Envelope and Command types
//  2. [store] - the versioned, copy-on-write committed graph
//  3. [validate] and [rewire] - connection checks and deletion bridging
//  4. [reconcile] - snapshot arbitration and local edit handlers
//  5. [layout] - layered, tree and force strategies, run in the background
//  6. [emit] - envelope stamping and fan-out to sinks
//  7. [menu] - context-menu and popup state
//  8. [session], [bridge] - per-editor wiring and the WebSocket transport
//  9. [cache], [journal], [config] - storage backends and configuration
//
// # Architecture
//
//	host snapshot
//	     ↓
//	[reconcile] (timestamp + change test)
//	     ↓
//	[store] ← [validate], [rewire], [layout]
//	     ↓
//	[emit] → host, [journal], [cache]
//
// # Quick Start
//
// Drive one session without a network:
//
//	rec := &emit.Recorder{}
//	sess := session.New("demo", session.Options{})
//	defer sess.Close()
//	detach := sess.Attach(rec, nil)
//	defer detach()
//
//	sess.HandleSnapshot(ctx, flow.Snapshot{Nodes: nodes, Edges: edges, Timestamp: 1})
//	sess.Connect(ctx, "1", "3")
//	env, _ := rec.Last()
//
// The flowsync command serves the same sessions over WebSocket:
//
//	flowsync serve --addr :8765
package pkg
