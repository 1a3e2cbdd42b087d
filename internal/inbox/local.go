package inbox

import (
	"context"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/models"
)

// LocalBackend serves a Watcher from an in-process chat.Service.
type LocalBackend struct {
	Service *chat.Service
	UserID  string
}

var _ Backend = (*LocalBackend)(nil)

func (b *LocalBackend) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	return b.Service.ListConversations(ctx, b.UserID)
}

func (b *LocalBackend) Summary(ctx context.Context, conversationID string) (*models.ConversationSummary, error) {
	return b.Service.Summary(ctx, conversationID, b.UserID)
}
