package session

import (
	"context"
	"time"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/chathub"
	"pawchat/backend/internal/models"
)

// LocalBackend serves a controller from an in-process chat.Service.
type LocalBackend struct {
	Service  *chat.Service
	ViewerID string
}

var _ Backend = (*LocalBackend)(nil)

func (b *LocalBackend) ConversationView(ctx context.Context, conversationID string) (*models.ConversationView, error) {
	return b.Service.ConversationView(ctx, conversationID, b.ViewerID)
}

func (b *LocalBackend) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := b.Service.GetConversation(ctx, conversationID, b.ViewerID); err != nil {
		return nil, err
	}
	return b.Service.ListMessages(ctx, conversationID)
}

func (b *LocalBackend) AppendMessage(ctx context.Context, conversationID, body string) (*models.Message, error) {
	return b.Service.AppendMessage(ctx, conversationID, b.ViewerID, body)
}

func (b *LocalBackend) MarkRead(ctx context.Context, conversationID string) (int64, error) {
	return b.Service.MarkRead(ctx, conversationID, b.ViewerID, time.Time{})
}

func (b *LocalBackend) MarkMessageRead(ctx context.Context, conversationID, messageID string) (bool, error) {
	return b.Service.MarkMessageRead(ctx, conversationID, messageID, b.ViewerID)
}

// BridgeSubscriber adapts a chathub.Bridge to Subscriber.
type BridgeSubscriber struct {
	Bridge chathub.Bridge
}

func (s BridgeSubscriber) Subscribe(_ context.Context, conversationID string, h func(models.MessageEvent)) (Subscription, error) {
	sub := s.Bridge.Subscribe(conversationID, h)
	return &bridgeSubscription{bridge: s.Bridge, sub: sub}, nil
}

type bridgeSubscription struct {
	bridge chathub.Bridge
	sub    *chathub.Subscription
}

func (s *bridgeSubscription) Done() <-chan struct{} { return s.sub.Done() }

func (s *bridgeSubscription) Close() { s.bridge.Unsubscribe(s.sub) }

// SubscribeInbox streams inserts of every conversation; callers filter by participant.
func (s BridgeSubscriber) SubscribeInbox(_ context.Context, h func(models.MessageEvent)) (Subscription, error) {
	sub := s.Bridge.SubscribeAll(h)
	return &bridgeSubscription{bridge: s.Bridge, sub: sub}, nil
}
