package flow

import "strings"

// Kind is the renderer node type.
type Kind string

// Node kinds.
const (
	KindInput   Kind = "input"
	KindOutput  Kind = "output"
	KindDefault Kind = "default"
)

// Valid reports whether k is one of the known kinds. The empty kind is
// treated as [KindDefault] by the renderer and is accepted.
func (k Kind) Valid() bool {
	switch k {
	case "", KindInput, KindOutput, KindDefault:
		return true
	}
	return false
}

// Well-known keys of Node.Data.
const (
	DataCommand    = "command"
	DataHTML       = "html"
	DataLocked     = "locked"
	DataEditable   = "editable"
	DataShowOutput = "show_output"
	DataPill       = "pill"
	DataContent    = "content"
)

// SatellitePrefix marks output companions of a primary node: "output-42"
// is the satellite of node "42".
const SatellitePrefix = "output-"

// Fallback dimensions for nodes the renderer has not measured yet.
const (
	DefaultWidth  = 150.0
	DefaultHeight = 40.0
)

// Position is a point in flow coordinates (top-left of a node).
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Dimensions is a node's measured size.
type Dimensions struct {
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// Viewport is the renderer camera.
type Viewport struct {
	X    float64 `json:"x" bson:"x"`
	Y    float64 `json:"y" bson:"y"`
	Zoom float64 `json:"zoom" bson:"zoom"`
}

// Node is a vertex of the diagram.
type Node struct {
	ID        string         `json:"id" bson:"id"`
	Kind      Kind           `json:"type,omitempty" bson:"type,omitempty"`
	Position  Position       `json:"position" bson:"position"`
	Width     float64        `json:"width,omitempty" bson:"width,omitempty"`
	Height    float64        `json:"height,omitempty" bson:"height,omitempty"`
	Data      map[string]any `json:"data,omitempty" bson:"data,omitempty"`
	Selected  bool           `json:"selected,omitempty" bson:"selected,omitempty"`
	Deletable bool           `json:"deletable" bson:"deletable"`
	Locked    bool           `json:"locked,omitempty" bson:"locked,omitempty"`
}

// Dimensions returns the node's size, substituting defaults for unmeasured axes.
func (n Node) Dimensions() Dimensions {
	d := Dimensions{Width: n.Width, Height: n.Height}
	if d.Width <= 0 {
		d.Width = DefaultWidth
	}
	if d.Height <= 0 {
		d.Height = DefaultHeight
	}
	return d
}

// Center returns the center point of the node's bounding box.
func (n Node) Center() Position {
	d := n.Dimensions()
	return Position{X: n.Position.X + d.Width/2, Y: n.Position.Y + d.Height/2}
}

// IsLocked reports whether the node is locked, either by the top-level flag
// or by the host's data.locked payload.
func (n Node) IsLocked() bool {
	if n.Locked {
		return true
	}
	b, _ := n.Data[DataLocked].(bool)
	return b
}

// DataString returns the string stored under key, or "".
func (n Node) DataString(key string) string {
	s, _ := n.Data[key].(string)
	return s
}

// DataBool returns the bool stored under key, or false.
func (n Node) DataBool(key string) bool {
	b, _ := n.Data[key].(bool)
	return b
}

// IsSatellite reports whether the node is an output companion.
func (n Node) IsSatellite() bool { return IsSatelliteID(n.ID, SatellitePrefix) }

// IsSatelliteID reports whether id names a satellite under the given prefix.
func IsSatelliteID(id, prefix string) bool {
	return prefix != "" && strings.HasPrefix(id, prefix) && len(id) > len(prefix)
}

// SatelliteParent returns the id of the primary node a satellite belongs to.
func SatelliteParent(id, prefix string) (string, bool) {
	if !IsSatelliteID(id, prefix) {
		return "", false
	}
	return strings.TrimPrefix(id, prefix), true
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID       string `json:"id" bson:"id"`
	Source   string `json:"source" bson:"source"`
	Target   string `json:"target" bson:"target"`
	Selected bool   `json:"selected,omitempty" bson:"selected,omitempty"`
	Animated bool   `json:"animated,omitempty" bson:"animated,omitempty"`
	Label    string `json:"label,omitempty" bson:"label,omitempty"`
}

// LayoutSettings is the host's layout configuration as it appears on the
// wire. The layout package turns it into typed options.
type LayoutSettings struct {
	Strategy           string  `json:"strategy,omitempty" toml:"strategy"`
	Direction          string  `json:"direction,omitempty" toml:"direction"`
	NodeNodeSpacing    float64 `json:"nodeNodeSpacing,omitempty" toml:"node_spacing"`
	NodeLayerSpacing   float64 `json:"nodeLayerSpacing,omitempty" toml:"layer_spacing"`
	ConsiderModelOrder *bool   `json:"considerModelOrder,omitempty" toml:"consider_model_order"`
	Iterations         int     `json:"iterations,omitempty" toml:"iterations"`
	Epsilon            float64 `json:"epsilon,omitempty" toml:"epsilon"`
	SatellitePrefix    string  `json:"satellitePrefix,omitempty" toml:"satellite_prefix"`
}

// HostArgs are the per-snapshot switches sent by the host alongside the graph.
type HostArgs struct {
	FitView         bool            `json:"fitView"`
	Disabled        bool            `json:"disabled"`
	AllowNewEdges   bool            `json:"allowNewEdges"`
	AnimateNewEdges bool            `json:"animateNewEdges"`
	GetNodeOnClick  bool            `json:"getNodeOnClick"`
	GetEdgeOnClick  bool            `json:"getEdgeOnClick"`
	EnablePaneMenu  bool            `json:"enablePaneMenu"`
	EnableNodeMenu  bool            `json:"enableNodeMenu"`
	EnableEdgeMenu  bool            `json:"enableEdgeMenu"`
	LayoutOptions   *LayoutSettings `json:"layoutOptions,omitempty"`
	Style           map[string]any  `json:"style,omitempty"`
	Viewport        *Viewport       `json:"viewport,omitempty"`
}

// Snapshot is a complete graph description pushed by the host.
type Snapshot struct {
	Nodes      []Node   `json:"nodes"`
	Edges      []Edge   `json:"edges"`
	Timestamp  int64    `json:"timestamp"`
	SelectedID *string  `json:"selectedId,omitempty"`
	Command    *Command `json:"command,omitempty"`
	HostArgs
}

// Envelope is the outbound event: the full graph after a mutation plus the
// metadata the host needs to act on it.
type Envelope struct {
	EventID    string    `json:"eventId" bson:"event_id"`
	Session    string    `json:"session,omitempty" bson:"session,omitempty"`
	Nodes      []Node    `json:"nodes" bson:"nodes"`
	Edges      []Edge    `json:"edges" bson:"edges"`
	SelectedID *string   `json:"selectedId" bson:"selected_id"`
	Timestamp  int64     `json:"timestamp" bson:"timestamp"`
	Command    *Command  `json:"command" bson:"command"`
	Viewport   *Viewport `json:"viewport" bson:"viewport"`
}

// Ref returns a pointer to id, or nil when id is empty. Envelopes encode a
// nil selection as JSON null.
func Ref(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// Deref returns the pointed-to id or "".
func Deref(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
