package session

import (
	"context"

	"pawchat/backend/internal/models"
)

// Backend is the messaging API as seen by one signed-in viewer.
type Backend interface {
	ConversationView(ctx context.Context, conversationID string) (*models.ConversationView, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, conversationID, body string) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID string) (int64, error)
	MarkMessageRead(ctx context.Context, conversationID, messageID string) (bool, error)
}

// Subscription is a live event stream. Done closes when the stream ends for
// any reason; after that no more events arrive.
type Subscription interface {
	Done() <-chan struct{}
	Close()
}

// Subscriber opens the realtime stream of one conversation.
type Subscriber interface {
	Subscribe(ctx context.Context, conversationID string, h func(models.MessageEvent)) (Subscription, error)
}
