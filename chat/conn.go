package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/connecmaq/marketplace-api/models"
)

type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

// conn is the state of one accepted client. Only the goroutine running the read
// loop touches it.
type conn struct {
	h       *Handler
	base    context.Context
	roomID  int64
	user    models.User
	session Session
	state   connState
}

func newConn(h *Handler, base context.Context, roomID int64, user models.User, s Session) *conn {
	return &conn{
		h:       h,
		base:    base,
		roomID:  roomID,
		user:    user,
		session: s,
		state:   stateConnecting,
	}
}

func (c *conn) open() {
	c.h.Registry.Register(c.roomID, c.session)
	c.state = stateOpen
	zap.S().Debugw("chat connection open",
		"roomID", c.roomID,
		"userID", c.user.ID,
		"sessionID", c.session.ID())
}

func (c *conn) close() {
	if c.state == stateClosed {
		return
	}
	c.h.Registry.Unregister(c.roomID, c.session)
	if s, ok := c.session.(*wsSession); ok {
		s.close()
	}
	c.state = stateClosed
	zap.S().Debugw("chat connection closed",
		"roomID", c.roomID,
		"userID", c.user.ID,
		"sessionID", c.session.ID())
}

func (c *conn) readLoop(ws *websocket.Conn) {
	cfg := c.h.Socket
	ws.SetReadLimit(cfg.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				zap.S().Debugw("chat connection dropped", "roomID", c.roomID, "userID", c.user.ID, "error", err)
			}
			return
		}
		c.handle(data)
	}
}

// handle processes one inbound frame. Malformed frames and unknown kinds are dropped
// and never close the connection.
func (c *conn) handle(data []byte) {
	if c.state != stateOpen {
		return
	}

	var ev inboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		zap.S().Debugw("dropping malformed chat event", "roomID", c.roomID, "userID", c.user.ID, "error", err)
		return
	}

	switch ev.Type {
	case EventChatMessage:
		c.handleChatMessage(ev)
	case EventReadReceipt:
		c.handleReadReceipt(ev)
	}
}

func (c *conn) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.base, c.h.StoreTimeout)
}

func (c *conn) handleChatMessage(ev inboundEvent) {
	if ev.Message == nil || *ev.Message == "" {
		return
	}

	ctx, cancel := c.storeContext()
	defer cancel()

	msg, err := c.h.Store.CreateMessage(ctx, c.roomID, c.user.ID, *ev.Message)
	if err != nil {
		zap.S().Errorw("failed to persist chat message",
			"roomID", c.roomID,
			"userID", c.user.ID,
			"error", err)
		return
	}

	if _, err := c.h.Registry.Publish(c.roomID, NewChatMessageEvent(msg, c.user)); err != nil {
		zap.S().Errorw("failed to broadcast chat message", "roomID", c.roomID, "messageID", msg.ID, "error", err)
	}
}

func (c *conn) handleReadReceipt(ev inboundEvent) {
	if ev.MessageID == nil {
		return
	}
	messageID := *ev.MessageID

	ctx, cancel := c.storeContext()
	defer cancel()

	msg, err := c.h.Store.FindMessage(ctx, messageID)
	if errors.Is(err, ErrMessageNotFound) {
		return
	}
	if err != nil {
		zap.S().Errorw("failed to look up message for read receipt",
			"roomID", c.roomID,
			"messageID", messageID,
			"error", err)
		return
	}
	if msg.RoomID != c.roomID || msg.AuthorID == c.user.ID {
		return
	}

	// announced even when the message was already read
	marked, err := c.h.Store.MarkRead(ctx, messageID, c.user.ID)
	if err != nil {
		zap.S().Errorw("failed to mark message read",
			"roomID", c.roomID,
			"messageID", messageID,
			"userID", c.user.ID,
			"error", err)
		return
	}
	zap.S().Debugw("read receipt", "roomID", c.roomID, "messageID", messageID, "userID", c.user.ID, "changed", marked)

	if _, err := c.h.Registry.Publish(c.roomID, NewReadReceiptEvent(messageID, c.user.ID)); err != nil {
		zap.S().Errorw("failed to broadcast read receipt", "roomID", c.roomID, "messageID", messageID, "error", err)
	}
}
