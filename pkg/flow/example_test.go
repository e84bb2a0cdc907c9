package flow_test

import (
	"fmt"

	"github.com/flowco/flowsync/pkg/flow"
)

func ExampleIncomers() {
	nodes := []flow.Node{{ID: "load"}, {ID: "clean"}, {ID: "plot"}}
	edges := []flow.Edge{
		{ID: "e1", Source: "load", Target: "clean"},
		{ID: "e2", Source: "clean", Target: "plot"},
	}

	for _, n := range flow.Incomers("clean", nodes, edges) {
		fmt.Println("in:", n.ID)
	}
	for _, n := range flow.Outgoers("clean", nodes, edges) {
		fmt.Println("out:", n.ID)
	}
	// Output:
	// in: load
	// out: plot
}

func ExampleEdgeID() {
	fmt.Println(flow.EdgeID("a", "b"))
	fmt.Println(flow.BridgeEdgeID("a", "b"))
	// Output:
	// st-flow-edge_a-b
	// a->b
}
