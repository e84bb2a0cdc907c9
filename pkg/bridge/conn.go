package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
	"github.com/flowco/flowsync/pkg/session"
)

// conn is one WebSocket attached to a session. Only writeLoop writes to ws.
type conn struct {
	ws       *websocket.Conn
	sess     *session.Session
	logger   *log.Logger
	settings Settings
	send     chan Outbound
}

func newConn(ws *websocket.Conn, sess *session.Session, logger *log.Logger, settings Settings) *conn {
	return &conn{
		ws:       ws,
		sess:     sess,
		logger:   logger,
		settings: settings,
		send:     make(chan Outbound, settings.SendBuffer),
	}
}

// Send queues an envelope. It satisfies emit.Sink.
func (c *conn) Send(ctx context.Context, env flow.Envelope) error {
	if !c.enqueue(Outbound{Type: TypeEnvelope, Envelope: &env}) {
		return fmt.Errorf("connection send buffer full")
	}
	return nil
}

func (c *conn) enqueue(out Outbound) bool {
	select {
	case c.send <- out:
		return true
	default:
		c.logger.Warn("dropping outbound frame", "type", out.Type)
		return false
	}
}

// serve runs the connection until either side closes it.
func (c *conn) serve(ctx context.Context) {
	defer c.ws.Close()

	handleCtx, handleCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer handleCancel()

	detach := c.sess.Attach(c, func() { c.enqueue(Outbound{Type: TypeFitView}) })
	defer detach()

	c.enqueue(Outbound{Type: TypeHello, Session: c.sess.ID()})
	c.logger.Info("host connected")

	go func() {
		defer c.ws.Close()
		defer handleCancel()
		c.writeLoop(handleCtx)
	}()
	c.readLoop(handleCtx)
	handleCancel()
	c.logger.Info("host disconnected")
}

func (c *conn) writeLoop(ctx context.Context) {
	var ping <-chan time.Time
	if c.settings.PingInterval > 0 {
		ticker := time.NewTicker(c.settings.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case out := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := c.ws.WriteJSON(out); err != nil {
				// a write deadline timeout cannot be recovered
				c.logger.Debug("write frame", "type", out.Type, "err", err)
				return
			}
		case <-ping:
			c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(c.settings.ReadLimit)
	c.extendReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read frame", "err", err)
			}
			return
		}
		c.extendReadDeadline()
		if messageType != websocket.TextMessage {
			continue
		}
		c.handle(ctx, message)
	}
}

// extendReadDeadline allows two missed pongs before the read fails.
func (c *conn) extendReadDeadline() {
	if c.settings.PingInterval > 0 {
		c.ws.SetReadDeadline(time.Now().Add(2 * c.settings.PingInterval))
	}
}

func (c *conn) handle(ctx context.Context, message []byte) {
	var in Inbound
	if err := json.Unmarshal(message, &in); err != nil {
		c.enqueue(errorFrame(errors.Wrap(errors.ErrCodeInvalidInput, err, "decode frame"), 0))
		return
	}
	if err := dispatch(ctx, c.sess, in, func(out Outbound) { c.enqueue(out) }); err != nil {
		if errors.IsBenign(err) {
			c.logger.Debug("frame rejected", "type", in.Type, "err", err)
		} else {
			c.logger.Warn("frame failed", "type", in.Type, "err", err)
		}
		c.enqueue(errorFrame(err, in.Seq))
	}
}
