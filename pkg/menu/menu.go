// Package menu holds the context-menu state of an editor session.
//
// At most one overlay is open at a time. [Overlay] is a tagged union over
// None, Pane, Node and Edge; opening any variant replaces the whole value, so
// the other menus close implicitly.
package menu

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/flowco/flowsync/pkg/flow"
)

// DefaultMargin is the distance from the pane edge below which a menu is
// anchored from the opposite side so that it stays on screen.
const DefaultMargin = 200.0

// Kind discriminates the overlay variants.
type Kind int

// Overlay variants.
const (
	None Kind = iota
	Pane
	Node
	Edge
)

var kindNames = [...]string{"none", "pane", "node", "edge"}

func (k Kind) String() string {
	if k < None || k > Edge {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown menu kind %q", b)
}

// Point is a screen position relative to the pane's top-left corner.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the pane size in screen pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Anchor places a menu. Exactly one horizontal and one vertical side is set.
type Anchor struct {
	Top    *float64 `json:"top,omitempty"`
	Left   *float64 `json:"left,omitempty"`
	Right  *float64 `json:"right,omitempty"`
	Bottom *float64 `json:"bottom,omitempty"`
}

// ComputeAnchor anchors a menu at pointer. Near the right edge (within
// margin) the menu is anchored by its right side, near the bottom by its
// bottom side; elsewhere by left and top.
func ComputeAnchor(pointer Point, pane Size, margin float64) Anchor {
	var a Anchor
	if pointer.X < pane.Width-margin {
		a.Left = ptr(pointer.X)
	} else {
		a.Right = ptr(pane.Width - pointer.X)
	}
	if pointer.Y < pane.Height-margin {
		a.Top = ptr(pointer.Y)
	} else {
		a.Bottom = ptr(pane.Height - pointer.Y)
	}
	return a
}

func ptr(f float64) *float64 { return &f }

// ScreenToFlow converts a pane position to flow coordinates under vp.
// A zero zoom is treated as 1.
func ScreenToFlow(pointer Point, vp flow.Viewport) flow.Position {
	zoom := vp.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return flow.Position{X: (pointer.X - vp.X) / zoom, Y: (pointer.Y - vp.Y) / zoom}
}

// Overlay is the open menu, if any. FlowPos is set for Pane, TargetID for
// Node and Edge.
type Overlay struct {
	Kind     Kind
	Anchor   Anchor
	FlowPos  flow.Position
	TargetID string
}

// IsOpen reports whether a menu is showing.
func (o Overlay) IsOpen() bool { return o.Kind != None }

// MarshalJSON encodes only the fields of the active variant.
func (o Overlay) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind    Kind           `json:"kind"`
		Anchor  *Anchor        `json:"anchor,omitempty"`
		FlowPos *flow.Position `json:"flowPos,omitempty"`
		ID      string         `json:"id,omitempty"`
	}
	w := wire{Kind: o.Kind}
	switch o.Kind {
	case Pane:
		w.Anchor, w.FlowPos = &o.Anchor, &o.FlowPos
	case Node, Edge:
		w.Anchor, w.ID = &o.Anchor, o.TargetID
	}
	return json.Marshal(w)
}

// Controller owns the overlay of one session. It is safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	margin  float64
	overlay Overlay
}

// NewController creates a controller with the given edge margin.
// A non-positive margin uses [DefaultMargin].
func NewController(margin float64) *Controller {
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &Controller{margin: margin}
}

// Current returns the open overlay.
func (c *Controller) Current() Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlay
}

// OpenPane opens the pane menu; the click position is kept in flow
// coordinates for node creation.
func (c *Controller) OpenPane(pointer Point, pane Size, vp flow.Viewport) Overlay {
	return c.set(Overlay{
		Kind:    Pane,
		Anchor:  ComputeAnchor(pointer, pane, c.margin),
		FlowPos: ScreenToFlow(pointer, vp),
	})
}

// OpenNode opens the node menu for id.
func (c *Controller) OpenNode(pointer Point, pane Size, id string) Overlay {
	return c.set(Overlay{Kind: Node, Anchor: ComputeAnchor(pointer, pane, c.margin), TargetID: id})
}

// OpenEdge opens the edge menu for id.
func (c *Controller) OpenEdge(pointer Point, pane Size, id string) Overlay {
	return c.set(Overlay{Kind: Edge, Anchor: ComputeAnchor(pointer, pane, c.margin), TargetID: id})
}

// Close closes whatever is open.
func (c *Controller) Close() Overlay {
	return c.set(Overlay{})
}

func (c *Controller) set(o Overlay) Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlay = o
	return o
}
