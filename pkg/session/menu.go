package session

import (
	"context"

	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/menu"
)

// OpenMenu opens the context menu of kind at pointer. Each kind must be
// enabled by the host; node and edge menus need an existing target.
func (s *Session) OpenMenu(kind menu.Kind, pointer menu.Point, pane menu.Size, id string) (menu.Overlay, error) {
	if err := s.lock(); err != nil {
		return menu.Overlay{}, err
	}
	defer s.mu.Unlock()

	args := s.rec.Args()
	if args.Disabled {
		return menu.Overlay{}, errors.New(errors.ErrCodeDisabled, "editing is disabled")
	}
	switch kind {
	case menu.Pane:
		if !args.EnablePaneMenu {
			return menu.Overlay{}, errors.New(errors.ErrCodeDisabled, "pane menu is disabled")
		}
		vp := flow.Viewport{Zoom: 1}
		if v := s.emitter.Viewport(); v != nil {
			vp = *v
		}
		return s.menu.OpenPane(pointer, pane, vp), nil
	case menu.Node:
		if !args.EnableNodeMenu {
			return menu.Overlay{}, errors.New(errors.ErrCodeDisabled, "node menu is disabled")
		}
		if _, ok := s.store.Node(id); !ok {
			return menu.Overlay{}, errors.New(errors.ErrCodeMissingReference, "unknown node %q", id)
		}
		return s.menu.OpenNode(pointer, pane, id), nil
	case menu.Edge:
		if !args.EnableEdgeMenu {
			return menu.Overlay{}, errors.New(errors.ErrCodeDisabled, "edge menu is disabled")
		}
		if _, _, ok := flow.EdgeByID(s.store.Current().Edges, id); !ok {
			return menu.Overlay{}, errors.New(errors.ErrCodeMissingReference, "unknown edge %q", id)
		}
		return s.menu.OpenEdge(pointer, pane, id), nil
	}
	return menu.Overlay{}, errors.New(errors.ErrCodeInvalidInput, "unknown menu kind %q", kind)
}

// CloseMenu closes the context menu.
func (s *Session) CloseMenu() menu.Overlay {
	return s.menu.Close()
}

// MenuActions lists the entries of the open menu.
func (s *Session) MenuActions() []menu.Action {
	o := s.menu.Current()
	switch o.Kind {
	case menu.Pane:
		return menu.PaneActions()
	case menu.Edge:
		return menu.EdgeActions()
	case menu.Node:
		if n, ok := s.store.Node(o.TargetID); ok {
			return menu.NodeActions(n)
		}
	}
	return nil
}

// RunAction performs the named entry of the open menu on its target.
// Quick edit needs user input and goes through EditNode instead.
func (s *Session) RunAction(ctx context.Context, name string) error {
	o := s.menu.Current()
	if !o.IsOpen() {
		return errors.New(errors.ErrCodeInvalidInput, "no menu is open")
	}

	var action *menu.Action
	for _, a := range s.MenuActions() {
		if a.Name == name {
			action = &a
			break
		}
	}
	if action == nil {
		return errors.New(errors.ErrCodeInvalidInput, "%s menu has no action %q", o.Kind, name)
	}
	if !action.Enabled {
		return errors.New(errors.ErrCodeDisabled, "action %q is disabled", name)
	}

	switch {
	case action.Command != "":
		return s.NodeCommand(ctx, o.TargetID, action.Command)
	case name == menu.ActionDelete:
		_, err := s.DeleteNodes(ctx, []string{o.TargetID})
		return err
	case name == menu.ActionDeleteEdge:
		return s.DeleteEdges(ctx, []string{o.TargetID})
	case name == menu.ActionAddNode:
		_, err := s.AddNode(ctx, flow.KindDefault, nil, nil)
		return err
	case name == menu.ActionLayout:
		_, err := s.Layout(nil)
		return err
	}
	return errors.New(errors.ErrCodeInvalidInput, "action %q needs input", name)
}
