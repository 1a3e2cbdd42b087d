// Package chat implements the messaging operations on top of storage and the
// realtime bridge: conversation rendezvous, the message log with read state, and
// the conversation directory.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pawchat/backend/internal/chathub"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"
)

// Service wires storage, the bridge and the participant resolver.
type Service struct {
	Storage  storage.Storage
	Bridge   chathub.Bridge
	Resolver *Resolver
	Logger   *slog.Logger
}

// NewService Constructor
func NewService(s storage.Storage, bridge chathub.Bridge, resolver *Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = NewResolver(s, nil, logger)
	}
	return &Service{Storage: s, Bridge: bridge, Resolver: resolver, Logger: logger}
}

// FindOrCreateConversation returns the single conversation between userA and userB.
func (s *Service) FindOrCreateConversation(ctx context.Context, userA, userB string, bookingRef *string) (string, error) {
	if bookingRef != nil && strings.TrimSpace(*bookingRef) == "" {
		bookingRef = nil
	}
	conv, created, err := s.Storage.FindOrCreateConversation(ctx, userA, userB, bookingRef)
	if err != nil {
		return "", err
	}
	if created {
		s.Logger.Info("first contact", "conversation_id", conv.ID, "from", userA, "to", userB)
	}
	return conv.ID, nil
}

// GetConversation loads a conversation and checks that viewerID belongs to it.
func (s *Service) GetConversation(ctx context.Context, conversationID, viewerID string) (*models.Conversation, error) {
	conv, err := s.Storage.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, models.ErrNotAParticipant
	}
	return conv, nil
}

// AppendMessage stores the message and publishes it on the bridge. The append
// is committed before publishing; a failed publish is logged, not returned.
func (s *Service) AppendMessage(ctx context.Context, conversationID, senderID, body string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, models.ErrEmptyBody
	}
	conv, err := s.GetConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	msg, err := s.Storage.AppendMessage(ctx, conversationID, senderID, body)
	if err != nil {
		return nil, err
	}

	if s.Bridge != nil {
		if err := s.Bridge.Publish(ctx, models.NewMessageEvent(conv, *msg)); err != nil {
			s.Logger.Error("failed to publish message", "conversation_id", conversationID, "message_id", msg.ID, "error", err)
		}
	}
	return msg, nil
}

// ListMessages returns the full history in display order.
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.Storage.ListMessages(ctx, conversationID)
}

// MarkRead marks the other participant's messages up to upTo as read; a zero
// upTo means now.
func (s *Service) MarkRead(ctx context.Context, conversationID, viewerID string, upTo time.Time) (int64, error) {
	if upTo.IsZero() {
		upTo = time.Now().UTC()
	}
	marked, err := s.Storage.MarkRead(ctx, conversationID, viewerID, upTo)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		s.Logger.Debug("messages marked read", "conversation_id", conversationID, "viewer_id", viewerID, "count", marked)
	}
	return marked, nil
}

// MarkMessageRead is the single-message read receipt sent on push delivery.
func (s *Service) MarkMessageRead(ctx context.Context, conversationID, messageID, viewerID string) (bool, error) {
	return s.Storage.MarkMessageRead(ctx, conversationID, messageID, viewerID)
}

// UnreadCount counts the messages viewerID has not read yet.
func (s *Service) UnreadCount(ctx context.Context, conversationID, viewerID string) (int64, error) {
	if _, err := s.GetConversation(ctx, conversationID, viewerID); err != nil {
		return 0, err
	}
	return s.Storage.UnreadCount(ctx, conversationID, viewerID)
}

// ConversationView returns what an open chat renders above its timeline. A
// missing or unreachable booking only drops the banner.
func (s *Service) ConversationView(ctx context.Context, conversationID, viewerID string) (*models.ConversationView, error) {
	conv, err := s.GetConversation(ctx, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	other, err := s.Resolver.Resolve(ctx, conv.OtherParticipant(viewerID))
	if err != nil {
		return nil, err
	}
	view := &models.ConversationView{Conversation: *conv, Other: other}

	if conv.BookingRef != nil {
		booking, err := s.Storage.GetBooking(ctx, *conv.BookingRef)
		if err != nil {
			s.Logger.Warn("booking lookup failed", "conversation_id", conv.ID, "booking_id", *conv.BookingRef, "error", err)
		} else {
			view.Booking = booking
		}
	}
	return view, nil
}
