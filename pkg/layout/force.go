package layout

import (
	"context"
	"math"

	"github.com/flowco/flowsync/pkg/flow"
)

// Simulation constants. Strengths follow the usual d3-force defaults scaled
// to flow pixels.
const (
	linkStrength     = 0.5
	chargeStrength   = -400.0
	collideStrength  = 0.7
	collidePadding   = 10.0
	velocityDecay    = 0.4
	alphaMin         = 0.001
	satelliteGapBase = 0.5 // fraction of NodeSpacing between parent and satellite
)

type body struct {
	id     string
	x, y   float64 // center
	vx, vy float64
	w, h   float64
	r      float64 // collision radius
	fixed  bool
	parent int // index of the satellite's parent, or -1
}

// force runs the simulation until the largest velocity drops below
// opts.Epsilon or opts.Iterations ticks have run. Locked nodes do not move.
// Satellites are pinned to the right of their parent, vertically centered on
// it; a satellite whose parent is absent is simulated like any other node.
func force(ctx context.Context, nodes []flow.Node, edges []flow.Edge, opts Options) (Result, error) {
	bodies, index := seedBodies(nodes, opts.SatellitePrefix)

	type link struct{ s, t int }
	links := make([]link, 0, len(edges))
	degree := make([]int, len(bodies))
	for _, e := range edges {
		s, okS := index[e.Source]
		t, okT := index[e.Target]
		if !okS || !okT || s == t {
			continue
		}
		links = append(links, link{s, t})
		degree[s]++
		degree[t]++
	}

	alpha := 1.0
	alphaDecay := 1 - math.Pow(alphaMin, 1/float64(opts.Iterations))
	gap := opts.NodeSpacing * satelliteGapBase

	res := Result{}
	for tick := 1; tick <= opts.Iterations; tick++ {
		if tick%opts.BatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		alpha += (0 - alpha) * alphaDecay

		// Link: pull endpoints toward the preferred distance.
		for _, l := range links {
			s, t := &bodies[l.s], &bodies[l.t]
			dx := t.x + t.vx - s.x - s.vx
			dy := t.y + t.vy - s.y - s.vy
			dist := math.Hypot(dx, dy)
			if dist == 0 {
				dx, dy, dist = jiggle(l.s, l.t), jiggle(l.t, l.s), 1e-6
			}
			want := s.r + t.r + opts.LayerSpacing
			k := (dist - want) / dist * alpha * linkStrength / float64(min(degree[l.s], degree[l.t]))
			bias := float64(degree[l.s]) / float64(degree[l.s]+degree[l.t])
			t.vx -= dx * k * bias
			t.vy -= dy * k * bias
			s.vx += dx * k * (1 - bias)
			s.vy += dy * k * (1 - bias)
		}

		// Repulsion: all pairs.
		for i := range bodies {
			for j := i + 1; j < len(bodies); j++ {
				a, b := &bodies[i], &bodies[j]
				dx, dy := b.x-a.x, b.y-a.y
				l2 := dx*dx + dy*dy
				if l2 == 0 {
					dx, dy = jiggle(i, j), jiggle(j, i)
					l2 = dx*dx + dy*dy
				}
				l2 = max(l2, 1)
				f := chargeStrength * alpha / l2
				a.vx += dx * f
				a.vy += dy * f
				b.vx -= dx * f
				b.vy -= dy * f
			}
		}

		// Collision: separate overlapping bounding circles.
		for i := range bodies {
			for j := i + 1; j < len(bodies); j++ {
				a, b := &bodies[i], &bodies[j]
				dx := (b.x + b.vx) - (a.x + a.vx)
				dy := (b.y + b.vy) - (a.y + a.vy)
				rr := a.r + b.r
				l := math.Hypot(dx, dy)
				if l >= rr {
					continue
				}
				if l == 0 {
					dx, dy, l = jiggle(i, j), jiggle(j, i), 1e-6
				}
				push := (rr - l) / l * collideStrength * 0.5
				a.vx -= dx * push
				a.vy -= dy * push
				b.vx += dx * push
				b.vy += dy * push
			}
		}

		// Integrate.
		maxV := 0.0
		for i := range bodies {
			b := &bodies[i]
			if b.fixed || b.parent >= 0 {
				b.vx, b.vy = 0, 0
				continue
			}
			b.vx *= 1 - velocityDecay
			b.vy *= 1 - velocityDecay
			b.x += b.vx
			b.y += b.vy
			maxV = max(maxV, math.Hypot(b.vx, b.vy))
		}

		// Satellites follow their parent after it moved.
		for i := range bodies {
			if p := bodies[i].parent; p >= 0 {
				s, parent := &bodies[i], &bodies[p]
				s.x = parent.x + parent.w/2 + gap + s.w/2
				s.y = parent.y
			}
		}

		res.Iterations = tick
		if maxV < opts.Epsilon {
			res.Converged = true
			break
		}
	}

	res.Positions = make(map[string]flow.Position, len(bodies))
	for _, b := range bodies {
		res.Positions[b.id] = flow.Position{X: b.x - b.w/2, Y: b.y - b.h/2}
	}
	return res, nil
}

// seedBodies converts nodes to simulation bodies at their current centers.
// Nodes sharing a center with an earlier node are spread on a phyllotaxis
// spiral so that the simulation never starts from coincident points.
func seedBodies(nodes []flow.Node, prefix string) ([]body, map[string]int) {
	bodies := make([]body, 0, len(nodes))
	index := make(map[string]int, len(nodes))
	seen := make(map[flow.Position]bool, len(nodes))

	for _, n := range nodes {
		if _, dup := index[n.ID]; dup {
			continue
		}
		d := n.Dimensions()
		c := n.Center()
		if seen[c] {
			i := float64(len(bodies))
			radius := 10 * math.Sqrt(0.5+i)
			angle := i * math.Pi * (3 - math.Sqrt(5))
			c.X += radius * math.Cos(angle)
			c.Y += radius * math.Sin(angle)
		}
		seen[c] = true
		index[n.ID] = len(bodies)
		bodies = append(bodies, body{
			id:     n.ID,
			x:      c.X,
			y:      c.Y,
			w:      d.Width,
			h:      d.Height,
			r:      math.Hypot(d.Width, d.Height)/2 + collidePadding,
			fixed:  n.IsLocked(),
			parent: -1,
		})
	}

	for i := range bodies {
		if parent, ok := flow.SatelliteParent(bodies[i].id, prefix); ok {
			if p, ok := index[parent]; ok && p != i {
				bodies[i].parent = p
			}
		}
	}
	return bodies, index
}

// jiggle is a tiny deterministic offset used when two points coincide.
func jiggle(i, j int) float64 {
	return float64(i-j) * 1e-6
}
