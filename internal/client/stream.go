package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"pawchat/backend/internal/models"
	"pawchat/backend/internal/session"

	"github.com/gorilla/websocket"
)

// Stream is one open WebSocket event stream.
type Stream struct {
	conn      *websocket.Conn
	done      chan struct{}
	once      sync.Once
	closed    chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
}

var _ session.Subscription = (*Stream)(nil)

// Done is closed when the stream has ended, whether by Close or a dropped connection.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close ends the stream and waits for the reader to stop. It must not be
// called from the event handler.
func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
	<-s.done
}

// Subscribe streams inserts into one conversation.
func (c *Client) Subscribe(ctx context.Context, conversationID string, h func(models.MessageEvent)) (session.Subscription, error) {
	s, err := c.dial(ctx, "/ws/conversations/"+url.PathEscape(conversationID), func(ev models.MessageEvent) bool {
		return ev.ConversationID == conversationID
	}, h)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SubscribeInbox streams inserts into every conversation of the user.
func (c *Client) SubscribeInbox(ctx context.Context, h func(models.MessageEvent)) (session.Subscription, error) {
	s, err := c.dial(ctx, "/ws/inbox", nil, h)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context, path string, accept func(models.MessageEvent) bool, h func(models.MessageEvent)) (*Stream, error) {
	target, err := c.wsURL(path)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)
			return nil, decodeError(resp.StatusCode, raw)
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	s := &Stream{
		conn:   conn,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		ready:  make(chan struct{}),
	}
	go s.readLoop(c, accept, h)

	// Subscribe returns once the server has registered the subscription.
	timer := time.NewTimer(10 * time.Second)
	defer timer.Stop()
	select {
	case <-s.ready:
		return s, nil
	case <-s.done:
		return nil, fmt.Errorf("websocket closed before subscription was acknowledged")
	case <-timer.C:
		s.Close()
		return nil, fmt.Errorf("websocket subscription not acknowledged")
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}

func (s *Stream) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// readLoop hands decoded events to h until the socket fails. Frames that do not
// decode to a valid event for this stream are skipped.
func (s *Stream) readLoop(c *Client, accept func(models.MessageEvent) bool, h func(models.MessageEvent)) {
	defer close(s.done)
	for {
		var ev models.MessageEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			select {
			case <-s.closed:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("event stream ended", "error", err)
				}
				_ = s.conn.Close()
			}
			return
		}
		if ev.Type == models.EventSubscribed {
			s.markReady()
			continue
		}
		if ev.Type != models.EventMessageInserted || ev.ConversationID == "" {
			continue
		}
		s.markReady()
		if validateMessage(&ev.Message, ev.ConversationID) != nil {
			c.logger.Warn("dropping malformed event", "conversation_id", ev.ConversationID)
			continue
		}
		if accept != nil && !accept(ev) {
			continue
		}
		h(ev)
	}
}
