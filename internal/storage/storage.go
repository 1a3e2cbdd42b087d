// Package storage persists conversations, messages and the external profile and
// booking records. Service is the gorm/PostgreSQL implementation, Memory the
// in-process one used for development and tests.
package storage

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"
)

// Storage is the persistence surface of the messaging core.
type Storage interface {
	// FindOrCreateConversation returns the conversation of the unordered pair,
	// creating it on first contact. created reports whether this call inserted it.
	FindOrCreateConversation(ctx context.Context, userA, userB string, bookingRef *string) (conv *models.Conversation, created bool, err error)
	GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error)
	// ListConversationsForUser returns the user's conversations, most recent activity first.
	ListConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error)

	AppendMessage(ctx context.Context, conversationID, senderID, body string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	LastMessage(ctx context.Context, conversationID string) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID, viewerID string, upTo time.Time) (int64, error)
	MarkMessageRead(ctx context.Context, conversationID, messageID, viewerID string) (bool, error)
	UnreadCount(ctx context.Context, conversationID, viewerID string) (int64, error)

	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	SaveBooking(ctx context.Context, booking *models.Booking) error
}

// validatePair rejects self-conversations and missing ids.
func validatePair(userA, userB string) error {
	if userA == "" || userB == "" || userA == userB {
		return models.ErrInvalidParticipants
	}
	return nil
}

// normalizeBody trims the body and enforces the length limits.
func normalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", models.ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > config.MaxMessageLength {
		return "", models.ErrBodyTooLong
	}
	return body, nil
}
