package bridge

import (
	"context"

	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/menu"
	"github.com/flowco/flowsync/pkg/session"
)

// dispatch applies one inbound frame to sess. Frames that change what the
// renderer shows besides the graph are answered through reply; graph changes
// reach the connection as envelopes through the session.
func dispatch(ctx context.Context, sess *session.Session, in Inbound, reply func(Outbound)) error {
	switch in.Type {
	case TypeSnapshot:
		if in.Snapshot == nil {
			return missingField(in.Type, "snapshot")
		}
		_, err := sess.HandleSnapshot(ctx, *in.Snapshot)
		return err

	case TypeViewport:
		if in.Viewport == nil {
			return missingField(in.Type, "viewport")
		}
		return sess.SetViewport(*in.Viewport)

	case TypeDragStop:
		if in.Position == nil {
			return missingField(in.Type, "position")
		}
		return sess.DragStop(ctx, in.ID, *in.Position)

	case TypeResize:
		if in.Dimensions == nil {
			return missingField(in.Type, "dimensions")
		}
		return sess.Resize(ctx, in.ID, *in.Dimensions, in.Resizing)

	case TypeConnect:
		_, err := sess.Connect(ctx, in.Source, in.Target)
		return err

	case TypeDeleteNodes:
		_, err := sess.DeleteNodes(ctx, in.IDs)
		reply(overlayFrame(sess.Overlay(), nil))
		return err

	case TypeDeleteEdges:
		err := sess.DeleteEdges(ctx, in.IDs)
		reply(overlayFrame(sess.Overlay(), nil))
		return err

	case TypeSelectEdges:
		return sess.SelectEdges(ctx, in.IDs)

	case TypeClickNode:
		html, err := sess.ClickNode(ctx, in.ID, in.Shift)
		if err != nil {
			return err
		}
		if html != "" {
			reply(popupFrame(html))
		}
		return nil

	case TypeClickEdge:
		return sess.ClickEdge(ctx, in.ID)

	case TypeClickPane:
		err := sess.ClickPane(ctx)
		reply(overlayFrame(sess.Overlay(), nil))
		reply(popupFrame(""))
		return err

	case TypeClosePopup:
		sess.ClosePopup()
		reply(popupFrame(""))
		return nil

	case TypeContextMenu:
		if in.Pointer == nil || in.Pane == nil {
			return missingField(in.Type, "pointer and pane")
		}
		var kind menu.Kind
		if err := kind.UnmarshalText([]byte(in.Target)); err != nil || kind == menu.None {
			return errors.New(errors.ErrCodeInvalidInput, "unknown menu target %q", in.Target)
		}
		o, err := sess.OpenMenu(kind, *in.Pointer, *in.Pane, in.ID)
		if err != nil {
			return err
		}
		reply(overlayFrame(o, sess.MenuActions()))
		return nil

	case TypeMenuAction:
		err := sess.RunAction(ctx, in.Action)
		reply(overlayFrame(sess.Overlay(), nil))
		return err

	case TypeCloseMenu:
		reply(overlayFrame(sess.CloseMenu(), nil))
		return nil

	case TypeEditNode:
		err := sess.EditNode(ctx, in.ID, in.Pill, in.Content)
		reply(overlayFrame(sess.Overlay(), nil))
		return err

	case TypeChangeKind:
		return sess.ChangeKind(ctx, in.ID, in.Kind)

	case TypeNodeCommand:
		err := sess.NodeCommand(ctx, in.ID, in.Command)
		reply(overlayFrame(sess.Overlay(), nil))
		return err

	case TypeAddNode:
		_, err := sess.AddNode(ctx, in.Kind, in.Position, in.Data)
		reply(overlayFrame(sess.Overlay(), nil))
		return err

	case TypeLayout:
		_, err := sess.Layout(in.Layout)
		reply(overlayFrame(sess.Overlay(), nil))
		return err

	case TypeSketch:
		return sess.Sketch(ctx)
	}
	return errors.New(errors.ErrCodeInvalidInput, "unknown frame type %q", in.Type)
}

func missingField(typ, field string) error {
	return errors.New(errors.ErrCodeInvalidInput, "%s frame needs %s", typ, field)
}
