package layout

import (
	"fmt"
	"strings"

	"github.com/flowco/flowsync/pkg/cache"
	"github.com/flowco/flowsync/pkg/flow"
)

// Strategy names a layout algorithm.
type Strategy string

// Available strategies.
const (
	Layered Strategy = "layered"
	Tree    Strategy = "tree"
	Force   Strategy = "force"
)

// ParseStrategy accepts a strategy name case-insensitively. The empty string
// selects [Layered].
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "layered", "dot", "elk":
		return Layered, nil
	case "tree", "rank":
		return Tree, nil
	case "force", "force-directed", "forcedirected":
		return Force, nil
	}
	return "", fmt.Errorf("unknown layout strategy %q", s)
}

// Direction is the flow direction of ranked layouts.
type Direction string

// Directions.
const (
	Down  Direction = "DOWN"
	Up    Direction = "UP"
	Right Direction = "RIGHT"
	Left  Direction = "LEFT"
)

// ParseDirection accepts a direction case-insensitively. The empty string
// selects [Down].
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case "":
		return Down, nil
	case Down, Up, Right, Left:
		return d, nil
	}
	return "", fmt.Errorf("unknown layout direction %q", s)
}

// horizontal reports whether ranks advance along the x axis.
func (d Direction) horizontal() bool { return d == Left || d == Right }

// Default option values.
const (
	DefaultNodeSpacing  = 75.0
	DefaultLayerSpacing = 100.0
	DefaultIterations   = 300
	DefaultEpsilon      = 0.01
	DefaultBatchSize    = 10
)

// Options tunes every strategy. Fields a strategy does not use are ignored.
type Options struct {
	Direction    Direction
	NodeSpacing  float64
	LayerSpacing float64
	// ModelOrder keeps children in input edge order where the strategy allows.
	ModelOrder bool

	// Force simulation.
	Iterations      int
	Epsilon         float64
	BatchSize       int
	SatellitePrefix string
}

// DefaultOptions returns the options used when the host sends none.
func DefaultOptions() Options {
	return Options{
		Direction:       Down,
		NodeSpacing:     DefaultNodeSpacing,
		LayerSpacing:    DefaultLayerSpacing,
		ModelOrder:      true,
		Iterations:      DefaultIterations,
		Epsilon:         DefaultEpsilon,
		BatchSize:       DefaultBatchSize,
		SatellitePrefix: flow.SatellitePrefix,
	}
}

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Direction == "" {
		o.Direction = d.Direction
	}
	if o.NodeSpacing <= 0 {
		o.NodeSpacing = d.NodeSpacing
	}
	if o.LayerSpacing <= 0 {
		o.LayerSpacing = d.LayerSpacing
	}
	if o.Iterations <= 0 {
		o.Iterations = d.Iterations
	}
	if o.Epsilon < 0 {
		o.Epsilon = d.Epsilon
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.SatellitePrefix == "" {
		o.SatellitePrefix = d.SatellitePrefix
	}
	return o
}

// FromSettings converts the host's wire settings. A nil s yields the
// defaults with the Layered strategy.
func FromSettings(s *flow.LayoutSettings) (Strategy, Options, error) {
	opts := DefaultOptions()
	if s == nil {
		return Layered, opts, nil
	}
	strategy, err := ParseStrategy(s.Strategy)
	if err != nil {
		return "", Options{}, err
	}
	if opts.Direction, err = ParseDirection(s.Direction); err != nil {
		return "", Options{}, err
	}
	if s.NodeNodeSpacing > 0 {
		opts.NodeSpacing = s.NodeNodeSpacing
	}
	if s.NodeLayerSpacing > 0 {
		opts.LayerSpacing = s.NodeLayerSpacing
	}
	if s.ConsiderModelOrder != nil {
		opts.ModelOrder = *s.ConsiderModelOrder
	}
	if s.Iterations > 0 {
		opts.Iterations = s.Iterations
	}
	if s.Epsilon > 0 {
		opts.Epsilon = s.Epsilon
	}
	if s.SatellitePrefix != "" {
		opts.SatellitePrefix = s.SatellitePrefix
	}
	return strategy, opts, nil
}

// keyOpts is the cache-key view of the options.
func (o Options) keyOpts(s Strategy) cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		Strategy:        string(s),
		Direction:       string(o.Direction),
		NodeSpacing:     o.NodeSpacing,
		LayerSpacing:    o.LayerSpacing,
		ModelOrder:      o.ModelOrder,
		Iterations:      o.Iterations,
		Epsilon:         o.Epsilon,
		SatellitePrefix: o.SatellitePrefix,
	}
}
