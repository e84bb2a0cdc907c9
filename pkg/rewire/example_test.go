package rewire_test

import (
	"fmt"

	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/rewire"
)

func ExampleOnNodesDeleted() {
	nodes := []flow.Node{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	edges := []flow.Edge{
		{ID: "e1", Source: "1", Target: "2"},
		{ID: "e2", Source: "2", Target: "3"},
	}

	for _, e := range rewire.OnNodesDeleted([]flow.Node{nodes[1]}, nodes, edges) {
		fmt.Println(e.ID)
	}
	// Output:
	// 1->3
}
