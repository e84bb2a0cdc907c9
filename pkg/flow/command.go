package flow

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Command names understood by the host.
const (
	CommandInspect = "inspect"
	CommandEdit    = "edit"
	CommandLock    = "lock"
	CommandUnlock  = "unlock"
	CommandShow    = "show"
	CommandHide    = "hide"
	CommandRun     = "run"
	CommandSketch  = "sketch"
	CommandLayout  = "layout"
)

// Command is a structured instruction that needs host-side logic beyond
// graph editing. On the wire the payload is flattened next to the name:
//
//	{"command": "inspect", "id": "42"}
//	{"command": "sketch", "image": "data:image/png;base64,..."}
type Command struct {
	Name    string         `bson:"name"`
	ID      string         `bson:"id,omitempty"`
	Payload map[string]any `bson:"payload,omitempty"`
}

// NewCommand returns a command targeting id. An empty id is omitted on the wire.
func NewCommand(name, id string) *Command {
	return &Command{Name: name, ID: id}
}

// With returns a copy of c with key set in its payload.
func (c Command) With(key string, value any) *Command {
	out := c
	out.Payload = maps.Clone(c.Payload)
	if out.Payload == nil {
		out.Payload = make(map[string]any, 1)
	}
	out.Payload[key] = value
	return &out
}

const (
	commandKeyName = "command"
	commandKeyID   = "id"
)

// MarshalJSON flattens the payload next to "command" and "id".
// Payload keys never override the name or id.
func (c Command) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.Payload)+2)
	for k, v := range c.Payload {
		m[k] = v
	}
	m[commandKeyName] = c.Name
	if c.ID != "" {
		m[commandKeyID] = c.ID
	} else {
		delete(m, commandKeyID)
	}
	return json.Marshal(m)
}

// UnmarshalJSON reverses MarshalJSON. Unknown keys land in Payload.
func (c *Command) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	name, ok := m[commandKeyName].(string)
	if !ok || name == "" {
		return fmt.Errorf("command: missing %q", commandKeyName)
	}
	*c = Command{Name: name}
	if id, ok := m[commandKeyID].(string); ok {
		c.ID = id
	}
	delete(m, commandKeyName)
	delete(m, commandKeyID)
	if len(m) > 0 {
		c.Payload = m
	}
	return nil
}
