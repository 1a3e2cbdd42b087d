// Package chathub is the realtime event bridge: it fans newly appended messages
// out to every subscriber of a conversation, inside one process (Hub) or across
// server nodes (RedisRelay), and pushes them to clients over WebSocket (Conn).
package chathub

import (
	"context"
	"sync"

	"pawchat/backend/internal/models"

	"github.com/google/uuid"
)

// Handler receives one pushed event. Handlers of one subscription run
// sequentially, in publish order.
type Handler func(models.MessageEvent)

// Bridge is the publish/subscribe surface keyed by conversation id.
type Bridge interface {
	Publish(ctx context.Context, ev models.MessageEvent) error
	// Subscribe delivers events of one conversation published after it returns.
	// There is no replay.
	Subscribe(conversationID string, h Handler) *Subscription
	// SubscribeAll delivers events of every conversation.
	SubscribeAll(h Handler) *Subscription
	Unsubscribe(sub *Subscription)
}

// Subscription is one registered handler. Done is closed when the subscription
// ends, either by Unsubscribe or because the bridge dropped a slow consumer.
type Subscription struct {
	ID             string
	ConversationID string // empty for SubscribeAll

	handler Handler
	queue   chan models.MessageEvent
	done    chan struct{}
	once    sync.Once
}

func newSubscription(conversationID string, h Handler, buffer int) *Subscription {
	return &Subscription{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		handler:        h,
		queue:          make(chan models.MessageEvent, buffer),
		done:           make(chan struct{}),
	}
}

// Done is closed once the subscription no longer receives events.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// offer enqueues ev without blocking; false when the queue is full.
func (s *Subscription) offer(ev models.MessageEvent) bool {
	select {
	case <-s.done:
		return true
	case s.queue <- ev:
		return true
	default:
		return false
	}
}

// pump runs the handler for queued events until the subscription stops.
func (s *Subscription) pump() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(ev)
		}
	}
}
