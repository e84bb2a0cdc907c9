package menu

import "github.com/flowco/flowsync/pkg/flow"

// Action names that are not host commands.
const (
	ActionQuickEdit  = "quickEdit"
	ActionDelete     = "delete"
	ActionAddNode    = "addNode"
	ActionLayout     = "layout"
	ActionDeleteEdge = "deleteEdge"
)

// Action is one menu entry. Command is set when choosing the entry sends a
// host command.
type Action struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Command string `json:"command,omitempty"`
	Enabled bool   `json:"enabled"`
}

// NodeActions lists the node-menu entries for n. Every entry is disabled when
// the node is not deletable.
func NodeActions(n flow.Node) []Action {
	on := n.Deletable
	actions := []Action{{Name: ActionQuickEdit, Label: "Quick Edit", Enabled: on}}

	if n.DataBool(flow.DataEditable) {
		actions = append(actions, Action{Name: flow.CommandEdit, Label: "Edit", Command: flow.CommandEdit, Enabled: on})
	} else {
		actions = append(actions, Action{Name: flow.CommandEdit, Label: "Update", Command: flow.CommandEdit, Enabled: on})
	}

	if n.IsLocked() {
		actions = append(actions, Action{Name: flow.CommandUnlock, Label: "Unlock", Command: flow.CommandUnlock, Enabled: on})
	} else {
		actions = append(actions, Action{Name: flow.CommandLock, Label: "Lock", Command: flow.CommandLock, Enabled: on})
	}

	if n.DataBool(flow.DataShowOutput) {
		actions = append(actions, Action{Name: flow.CommandHide, Label: "Hide Output", Command: flow.CommandHide, Enabled: on})
	} else {
		actions = append(actions, Action{Name: flow.CommandShow, Label: "Show Output", Command: flow.CommandShow, Enabled: on})
	}

	return append(actions,
		Action{Name: flow.CommandRun, Label: "Run", Command: flow.CommandRun, Enabled: on},
		Action{Name: ActionDelete, Label: "Delete Node", Enabled: on},
	)
}

// PaneActions lists the pane-menu entries.
func PaneActions() []Action {
	return []Action{
		{Name: ActionAddNode, Label: "Add Node", Enabled: true},
		{Name: ActionLayout, Label: "Reset Layout", Enabled: true},
	}
}

// EdgeActions lists the edge-menu entries.
func EdgeActions() []Action {
	return []Action{{Name: ActionDeleteEdge, Label: "Delete Edge", Enabled: true}}
}
