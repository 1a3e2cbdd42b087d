package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one entry of a conversation's append-only log.
type Message struct {
	// ID is the message UUID. Clients deduplicate by it.
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// ConversationID is the owning conversation.
	ConversationID string `gorm:"type:uuid;not null;index:idx_conversation_created" json:"conversation_id"`
	// SenderID is one of the conversation's participants.
	SenderID string `gorm:"type:text;not null" json:"sender_id"`
	// Body is the text content.
	Body string `gorm:"type:text;not null" json:"body"`
	// CreatedAt orders the log.
	CreatedAt time.Time `gorm:"index:idx_conversation_created" json:"created_at"`
	// ReadAt is set once, by the non-sender.
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// BeforeCreate генерує UUID повідомлення, якщо його ще не встановлено.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Before reports whether m sorts before other in display order.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// IsUnreadFor reports whether the message counts as unread for viewerID.
func (m Message) IsUnreadFor(viewerID string) bool {
	return m.SenderID != viewerID && m.ReadAt == nil
}
