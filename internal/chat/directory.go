package chat

import (
	"context"

	"pawchat/backend/internal/models"
)

// ListConversations returns the directory of userID, most recent activity first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	convs, err := s.Storage.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.ConversationSummary, 0, len(convs))
	for i := range convs {
		summary, err := s.summarize(ctx, &convs[i], userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// Summary returns the directory row of one conversation.
func (s *Service) Summary(ctx context.Context, conversationID, userID string) (*models.ConversationSummary, error) {
	conv, err := s.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, conv, userID)
}

func (s *Service) summarize(ctx context.Context, conv *models.Conversation, userID string) (*models.ConversationSummary, error) {
	other, err := s.Resolver.Resolve(ctx, conv.OtherParticipant(userID))
	if err != nil {
		return nil, err
	}
	last, err := s.Storage.LastMessage(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	unread, err := s.Storage.UnreadCount(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}
	return &models.ConversationSummary{
		Conversation: *conv,
		Other:        other,
		LastMessage:  last,
		UnreadCount:  unread,
	}, nil
}
