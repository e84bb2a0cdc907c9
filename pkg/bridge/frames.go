package bridge

import (
	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/menu"
)

// Inbound frame types.
const (
	TypeSnapshot    = "snapshot"
	TypeDragStop    = "dragStop"
	TypeResize      = "resize"
	TypeConnect     = "connect"
	TypeDeleteNodes = "deleteNodes"
	TypeDeleteEdges = "deleteEdges"
	TypeSelectEdges = "selectEdges"
	TypeClickNode   = "clickNode"
	TypeClickEdge   = "clickEdge"
	TypeClickPane   = "clickPane"
	TypeContextMenu = "contextMenu"
	TypeMenuAction  = "menuAction"
	TypeCloseMenu   = "closeMenu"
	TypeClosePopup  = "closePopup"
	TypeEditNode    = "editNode"
	TypeChangeKind  = "changeKind"
	TypeNodeCommand = "nodeCommand"
	TypeAddNode     = "addNode"
	TypeLayout      = "layout"
	TypeSketch      = "sketch"
	TypeViewport    = "viewport"
)

// Outbound frame types.
const (
	TypeHello    = "hello"
	TypeEnvelope = "envelope"
	TypeOverlay  = "overlay"
	TypePopup    = "popup"
	TypeFitView  = "fitView"
	TypeError    = "error"
)

// Inbound is a frame from the renderer or host. Only the fields of its type
// are read.
//
//	{"type": "connect", "source": "1", "target": "3"}
//	{"type": "contextMenu", "target": "pane", "pointer": {"x": 10, "y": 20}, "pane": {"width": 800, "height": 600}}
type Inbound struct {
	Type string `json:"type"`
	// Seq is echoed in the error frame of a failed request.
	Seq int64 `json:"seq,omitempty"`

	Snapshot *flow.Snapshot `json:"snapshot,omitempty"`

	ID  string   `json:"id,omitempty"`
	IDs []string `json:"ids,omitempty"`

	Position   *flow.Position   `json:"position,omitempty"`
	Dimensions *flow.Dimensions `json:"dimensions,omitempty"`
	Resizing   bool             `json:"resizing,omitempty"`

	// Source and Target are node ids for connect. For contextMenu Target
	// names the menu: pane, node or edge.
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Shift  bool   `json:"shift,omitempty"`

	Pointer *menu.Point `json:"pointer,omitempty"`
	Pane    *menu.Size  `json:"pane,omitempty"`
	Action  string      `json:"action,omitempty"`

	Pill    string         `json:"pill,omitempty"`
	Content string         `json:"content,omitempty"`
	Kind    flow.Kind      `json:"kind,omitempty"`
	Command string         `json:"command,omitempty"`
	Data    map[string]any `json:"data,omitempty"`

	Layout   *flow.LayoutSettings `json:"layout,omitempty"`
	Viewport *flow.Viewport       `json:"viewport,omitempty"`
}

// Outbound is a frame to the renderer or host.
type Outbound struct {
	Type     string         `json:"type"`
	Session  string         `json:"session,omitempty"`
	Envelope *flow.Envelope `json:"envelope,omitempty"`
	Overlay  *menu.Overlay  `json:"overlay,omitempty"`
	Actions  []menu.Action  `json:"actions,omitempty"`
	Popup    *string        `json:"popup,omitempty"`
	Error    *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody reports a failed request.
type ErrorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
	Seq     int64       `json:"seq,omitempty"`
}

func errorFrame(err error, seq int64) Outbound {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return Outbound{Type: TypeError, Error: &ErrorBody{Code: code, Message: errors.UserMessage(err), Seq: seq}}
}

func overlayFrame(o menu.Overlay, actions []menu.Action) Outbound {
	return Outbound{Type: TypeOverlay, Overlay: &o, Actions: actions}
}

func popupFrame(html string) Outbound {
	return Outbound{Type: TypePopup, Popup: &html}
}
