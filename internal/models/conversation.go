package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a persistent two-party messaging thread.
// The participant pair is unordered: PairKey is the same for (a, b) and (b, a)
// and carries the unique index that makes rendezvous safe under races.
type Conversation struct {
	// ID is the opaque conversation identifier (UUID). It is also the realtime channel key.
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// ParticipantA is the user who initiated the first contact.
	ParticipantA string `gorm:"type:text;not null;index" json:"participant_a"`
	// ParticipantB is the other user.
	ParticipantB string `gorm:"type:text;not null;index" json:"participant_b"`
	// PairKey is the sorted participant pair, see PairKey().
	PairKey string `gorm:"type:text;not null;uniqueIndex" json:"-"`
	// BookingRef optionally links the conversation to a sitting booking.
	BookingRef *string `gorm:"type:text" json:"booking_reference,omitempty"`
	// CreatedAt is set on first contact.
	CreatedAt time.Time `json:"created_at"`
	// LastMessageAt is advanced on every appended message.
	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
}

// PairKey builds the order-independent key for two participants.
func PairKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// BeforeCreate fills the UUID, the pair key and the initial activity timestamp.
func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.PairKey = PairKey(c.ParticipantA, c.ParticipantB)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = c.CreatedAt
	}
	return
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Participants returns both participant ids.
func (c *Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}
