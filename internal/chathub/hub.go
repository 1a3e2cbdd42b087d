package chathub

import (
	"context"
	"errors"
	"log/slog"

	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"
)

// ErrHubStopped is returned by Publish after Run has returned.
var ErrHubStopped = errors.New("chathub: hub stopped")

// Hub is the in-process bridge. A single Run goroutine owns the subscription
// table; registration, removal and dispatch all go through its channels.
type Hub struct {
	// subs: conversation id ("" for all conversations) -> subscription id -> subscription
	subs map[string]map[string]*Subscription

	RegisterCh   chan *Subscription
	UnregisterCh chan *Subscription
	PublishCh    chan models.MessageEvent

	BufferSize int
	Logger     *slog.Logger

	stopped chan struct{}
}

var _ Bridge = (*Hub)(nil)

// NewHub creates a hub; call Run before subscribing.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:         make(map[string]map[string]*Subscription),
		RegisterCh:   make(chan *Subscription),
		UnregisterCh: make(chan *Subscription),
		PublishCh:    make(chan models.MessageEvent),
		BufferSize:   config.SubscriberBufferSize,
		Logger:       logger,
		stopped:      make(chan struct{}),
	}
}

// Run dispatches until ctx is cancelled, then ends every subscription.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case sub := <-h.RegisterCh:
			room := h.subs[sub.ConversationID]
			if room == nil {
				room = make(map[string]*Subscription)
				h.subs[sub.ConversationID] = room
			}
			room[sub.ID] = sub

		case sub := <-h.UnregisterCh:
			h.remove(sub)

		case ev := <-h.PublishCh:
			h.dispatch(ev)

		case <-ctx.Done():
			for _, room := range h.subs {
				for _, sub := range room {
					sub.stop()
				}
			}
			h.subs = make(map[string]map[string]*Subscription)
			return
		}
	}
}

func (h *Hub) dispatch(ev models.MessageEvent) {
	keys := []string{ev.ConversationID, ""}
	if ev.ConversationID == "" {
		keys = keys[1:]
	}
	for _, key := range keys {
		for _, sub := range h.subs[key] {
			if sub.offer(ev) {
				continue
			}
			// Обробка блокування: повільний підписник відключається.
			h.Logger.Warn("dropping slow subscriber", "subscription_id", sub.ID, "conversation_id", sub.ConversationID)
			h.remove(sub)
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	if room, ok := h.subs[sub.ConversationID]; ok {
		delete(room, sub.ID)
		if len(room) == 0 {
			delete(h.subs, sub.ConversationID)
		}
	}
	sub.stop()
}

// Publish hands ev to the dispatcher. Delivery to subscribers is asynchronous.
func (h *Hub) Publish(ctx context.Context, ev models.MessageEvent) error {
	select {
	case h.PublishCh <- ev:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Subscribe(conversationID string, handler Handler) *Subscription {
	return h.register(newSubscription(conversationID, handler, h.BufferSize))
}

func (h *Hub) SubscribeAll(handler Handler) *Subscription {
	return h.register(newSubscription("", handler, h.BufferSize))
}

// register returns after the dispatcher has recorded sub, so every event
// published afterwards reaches it.
func (h *Hub) register(sub *Subscription) *Subscription {
	go sub.pump()
	select {
	case h.RegisterCh <- sub:
	case <-h.stopped:
		sub.stop()
	}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.stop()
	select {
	case h.UnregisterCh <- sub:
	case <-h.stopped:
	}
}
