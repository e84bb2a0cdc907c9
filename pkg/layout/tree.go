package layout

import (
	"context"
	"slices"

	"github.com/flowco/flowsync/pkg/flow"
)

// maxSweeps bounds the barycentric crossing-reduction passes.
const maxSweeps = 8

// tree is the native rank layout. It is deterministic: the same input always
// yields the same positions.
func tree(ctx context.Context, nodes []flow.Node, edges []flow.Edge, opts Options) (Result, error) {
	idx := flow.NewIndex(nodes, edges)
	ranks := assignRanks(idx)
	orders := rankOrders(idx, ranks)

	best := countCrossings(idx, orders)
	for i := 0; i < maxSweeps && best > 0; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		candidate := cloneOrders(orders)
		sweepDown(idx, candidate)
		sweepUp(idx, candidate)
		c := countCrossings(idx, candidate)
		if c >= best {
			break
		}
		orders, best = candidate, c
	}

	return Result{Positions: placeRanks(idx, orders, opts)}, nil
}

// assignRanks places every node one rank below its deepest parent using a
// longest-path traversal in Kahn order. Sources are at rank 0. Nodes on a
// cycle never reach in-degree zero; they are parked on one extra rank below
// everything else.
func assignRanks(idx *flow.Index) map[string]int {
	ids := idx.IDs()
	inDegree := make(map[string]int, len(ids))
	ranks := make(map[string]int, len(ids))
	queue := make([]string, 0, len(ids))

	for _, id := range ids {
		degree := idx.InDegree(id)
		inDegree[id] = degree
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	done := make(map[string]bool, len(ids))
	maxRank := 0
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		done[curr] = true
		maxRank = max(maxRank, ranks[curr])

		for _, child := range idx.Children(curr) {
			if r := ranks[curr] + 1; r > ranks[child] {
				ranks[child] = r
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(done) < len(ids) {
		parked := maxRank + 1
		if len(done) == 0 {
			parked = 0
		}
		for _, id := range ids {
			if !done[id] {
				ranks[id] = parked
			}
		}
	}
	return ranks
}

// rankOrders groups ids by rank, preserving model order within a rank.
// Empty ranks are dropped so rank indices stay dense.
func rankOrders(idx *flow.Index, ranks map[string]int) [][]string {
	maxRank := 0
	for _, r := range ranks {
		maxRank = max(maxRank, r)
	}
	orders := make([][]string, maxRank+1)
	for _, id := range idx.IDs() {
		orders[ranks[id]] = append(orders[ranks[id]], id)
	}
	return slices.DeleteFunc(orders, func(o []string) bool { return len(o) == 0 })
}

func cloneOrders(orders [][]string) [][]string {
	out := make([][]string, len(orders))
	for i, o := range orders {
		out[i] = slices.Clone(o)
	}
	return out
}

func sweepDown(idx *flow.Index, orders [][]string) {
	for r := 1; r < len(orders); r++ {
		sortByBarycenter(orders[r], posMap(orders[r-1]), idx.Parents)
	}
}

func sweepUp(idx *flow.Index, orders [][]string) {
	for r := len(orders) - 2; r >= 0; r-- {
		sortByBarycenter(orders[r], posMap(orders[r+1]), idx.Children)
	}
}

// sortByBarycenter reorders row by the mean position of each node's
// neighbors in the adjacent row. Nodes without such neighbors keep their
// current position as their weight. The sort is stable.
func sortByBarycenter(row []string, adjPos map[string]int, neighbors func(string) []string) {
	weight := make(map[string]float64, len(row))
	for i, id := range row {
		sum, n := 0.0, 0
		for _, nb := range neighbors(id) {
			if p, ok := adjPos[nb]; ok {
				sum += float64(p)
				n++
			}
		}
		if n == 0 {
			weight[id] = float64(i)
			continue
		}
		weight[id] = sum / float64(n)
	}
	slices.SortStableFunc(row, func(a, b string) int {
		switch wa, wb := weight[a], weight[b]; {
		case wa < wb:
			return -1
		case wa > wb:
			return 1
		}
		return 0
	})
}

func posMap(row []string) map[string]int {
	m := make(map[string]int, len(row))
	for i, id := range row {
		m[id] = i
	}
	return m
}

// countCrossings sums edge crossings between consecutive ranks.
func countCrossings(idx *flow.Index, orders [][]string) int {
	crossings := 0
	for r := 0; r+1 < len(orders); r++ {
		crossings += countLayerCrossings(idx, orders[r], orders[r+1])
	}
	return crossings
}

// countLayerCrossings counts crossings between two adjacent ranks with a
// Fenwick tree. Edges (u1,v1) and (u2,v2) cross iff pos(u1) < pos(u2) and
// pos(v1) > pos(v2), i.e. the crossings are the inversions of target
// positions once edges are sorted by source position. O(E log V).
func countLayerCrossings(idx *flow.Index, upper, lower []string) int {
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}
	lowerPos := posMap(lower)

	type edge struct{ upper, lower int }
	edges := make([]edge, 0, len(upper)*2)
	for i, id := range upper {
		for _, child := range idx.Children(id) {
			if pos, ok := lowerPos[child]; ok {
				edges = append(edges, edge{i, pos})
			}
		}
	}
	if len(edges) < 2 {
		return 0
	}

	slices.SortFunc(edges, func(a, b edge) int {
		if a.upper != b.upper {
			return a.upper - b.upper
		}
		return a.lower - b.lower
	})

	fenwick := make([]int, len(lower)+1)
	crossings, total := 0, 0
	for _, e := range edges {
		lessOrEqual := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		crossings += total - lessOrEqual

		total++
		for i := e.lower + 1; i < len(fenwick); i += i & (-i) {
			fenwick[i]++
		}
	}
	return crossings
}

// placeRanks lays ranks out along the main axis and centers each rank on the
// cross axis. Each rank is as thick as its largest node.
func placeRanks(idx *flow.Index, orders [][]string, opts Options) map[string]flow.Position {
	horizontal := opts.Direction.horizontal()
	// main is the extent along the rank axis, cross the extent within a rank.
	extent := func(id string) (main, cross float64) {
		n, _ := idx.Node(id)
		d := n.Dimensions()
		if horizontal {
			return d.Width, d.Height
		}
		return d.Height, d.Width
	}

	thickness := make([]float64, len(orders))
	span := make([]float64, len(orders))
	widest := 0.0
	for r, row := range orders {
		for i, id := range row {
			m, c := extent(id)
			thickness[r] = max(thickness[r], m)
			span[r] += c
			if i > 0 {
				span[r] += opts.NodeSpacing
			}
		}
		widest = max(widest, span[r])
	}

	total := 0.0
	for r := range orders {
		total += thickness[r]
		if r > 0 {
			total += opts.LayerSpacing
		}
	}

	pos := make(map[string]flow.Position, idx.Len())
	mainOffset := 0.0
	for r, row := range orders {
		cursor := (widest - span[r]) / 2
		for _, id := range row {
			m, c := extent(id)
			main := mainOffset + (thickness[r]-m)/2
			if opts.Direction == Up || opts.Direction == Left {
				main = total - main - m
			}
			if horizontal {
				pos[id] = flow.Position{X: main, Y: cursor}
			} else {
				pos[id] = flow.Position{X: cursor, Y: main}
			}
			cursor += c + opts.NodeSpacing
		}
		mainOffset += thickness[r] + opts.LayerSpacing
	}
	return pos
}
