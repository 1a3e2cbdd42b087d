package chathub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned by SendEvent after the connection closed.
var ErrConnClosed = errors.New("chathub: connection closed")

// Conn pushes bridge events to one WebSocket client. Clients never send
// application data on this socket; the read pump only services pongs and
// detects the close.
type Conn struct {
	UserID string

	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewConn wraps an upgraded WebSocket for userID.
func NewConn(userID string, ws *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, config.SendBufferSize),
		closed: make(chan struct{}),
		logger: logger,
	}
}

// Run запускає 'pumps' для WebSocket
func (c *Conn) Run() {
	go c.writePump()
	go c.readPump()
}

// Done is closed when the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// SendEvent encodes ev and enqueues it. A client whose buffer is full is disconnected.
func (c *Conn) SendEvent(ev models.MessageEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return ErrConnClosed
	case c.send <- payload:
		return nil
	default:
		c.logger.Warn("websocket send buffer full, closing", "user_id", c.UserID)
		c.Close()
		return ErrConnClosed
	}
}

// Close stops both pumps and closes the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(config.WriteWait))
		_ = c.ws.Close()
	})
}

func (c *Conn) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(config.MaxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(config.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(config.PongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("error reading message", "user_id", c.UserID, "error", err)
			}
			return
		}
	}
}

// writePump читає повідомлення з каналу send і записує їх у WebSocket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
