package handler

import (
	"net/http"

	"pawchat/backend/internal/chathub"
	"pawchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeConversationStream pushes every message inserted into :id to the caller.
func (h *Handler) ServeConversationStream(c *gin.Context) {
	if !h.requireParticipant(c) {
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	convID := c.Param("id")
	sub := h.Bridge.Subscribe(convID, func(ev models.MessageEvent) {
		_ = conn.SendEvent(ev)
	})
	h.stream(conn, sub, convID)
}

// ServeInboxStream pushes inserts from every conversation the caller belongs to.
func (h *Handler) ServeInboxStream(c *gin.Context) {
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	user := CurrentUser(c)
	sub := h.Bridge.SubscribeAll(func(ev models.MessageEvent) {
		if ev.Involves(user) {
			_ = conn.SendEvent(ev)
		}
	})
	h.stream(conn, sub, "")
}

func (h *Handler) upgrade(c *gin.Context) (*chathub.Conn, bool) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.Logger.Warn("websocket upgrade failed", "user_id", CurrentUser(c), "error", err)
		return nil, false
	}
	return chathub.NewConn(CurrentUser(c), ws, h.Logger), true
}

// stream acknowledges the subscription and runs the connection until either
// side ends, then releases both.
func (h *Handler) stream(conn *chathub.Conn, sub *chathub.Subscription, conversationID string) {
	conn.Run()
	_ = conn.SendEvent(models.MessageEvent{Type: models.EventSubscribed, ConversationID: conversationID})
	select {
	case <-conn.Done():
	case <-sub.Done():
		// підписку скинуто, клієнт має перепідключитися
		conn.Close()
	}
	h.Bridge.Unsubscribe(sub)
}
