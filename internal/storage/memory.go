package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"pawchat/backend/internal/models"
)

// Memory is an in-process Storage. A single mutex serializes every operation,
// which also makes find-then-create atomic.
type Memory struct {
	mu sync.Mutex

	conversations map[string]*models.Conversation // id -> conversation
	byPair        map[string]string               // pair key -> id
	messages      map[string][]*models.Message    // conversation id -> log in append order
	profiles      map[string]models.Profile
	bookings      map[string]models.Booking

	// Now is the clock used for created_at and read_at.
	Now func() time.Time
}

var _ Storage = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*models.Conversation),
		byPair:        make(map[string]string),
		messages:      make(map[string][]*models.Message),
		profiles:      make(map[string]models.Profile),
		bookings:      make(map[string]models.Booking),
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) FindOrCreateConversation(_ context.Context, userA, userB string, bookingRef *string) (*models.Conversation, bool, error) {
	if err := validatePair(userA, userB); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPair[models.PairKey(userA, userB)]; ok {
		conv := *m.conversations[id]
		return &conv, false, nil
	}

	conv := &models.Conversation{
		ParticipantA: userA,
		ParticipantB: userB,
		BookingRef:   bookingRef,
		CreatedAt:    m.Now(),
	}
	_ = conv.BeforeCreate(nil)
	m.conversations[conv.ID] = conv
	m.byPair[conv.PairKey] = conv.ID

	out := *conv
	return &out, true, nil
}

func (m *Memory) GetConversation(_ context.Context, conversationID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	out := *conv
	return &out, nil
}

func (m *Memory) ListConversationsForUser(_ context.Context, userID string) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Conversation
	for _, conv := range m.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, *conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (m *Memory) AppendMessage(_ context.Context, conversationID, senderID, body string) (*models.Message, error) {
	body, err := normalizeBody(body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	if !conv.HasParticipant(senderID) {
		return nil, models.ErrNotAParticipant
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      m.Now(),
	}
	_ = msg.BeforeCreate(nil)
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	if msg.CreatedAt.After(conv.LastMessageAt) {
		conv.LastMessageAt = msg.CreatedAt
	}

	out := *msg
	return &out, nil
}

func (m *Memory) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Message, 0, len(m.messages[conversationID]))
	for _, msg := range m.messages[conversationID] {
		out = append(out, copyMessage(msg))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *Memory) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	history, err := m.ListMessages(ctx, conversationID)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	last := history[len(history)-1]
	return &last, nil
}

func (m *Memory) MarkRead(_ context.Context, conversationID, viewerID string, upTo time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireParticipantLocked(conversationID, viewerID); err != nil {
		return 0, err
	}
	now := m.Now()
	var marked int64
	for _, msg := range m.messages[conversationID] {
		if msg.IsUnreadFor(viewerID) && !msg.CreatedAt.After(upTo) {
			readAt := now
			msg.ReadAt = &readAt
			marked++
		}
	}
	return marked, nil
}

func (m *Memory) MarkMessageRead(_ context.Context, conversationID, messageID, viewerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireParticipantLocked(conversationID, viewerID); err != nil {
		return false, err
	}
	for _, msg := range m.messages[conversationID] {
		if msg.ID != messageID {
			continue
		}
		if !msg.IsUnreadFor(viewerID) {
			return false, nil
		}
		readAt := m.Now()
		msg.ReadAt = &readAt
		return true, nil
	}
	return false, models.ErrMessageNotFound
}

func (m *Memory) UnreadCount(_ context.Context, conversationID, viewerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, msg := range m.messages[conversationID] {
		if msg.IsUnreadFor(viewerID) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) requireParticipantLocked(conversationID, userID string) error {
	conv, ok := m.conversations[conversationID]
	if !ok {
		return models.ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return models.ErrNotAParticipant
	}
	return nil
}

func (m *Memory) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

func (m *Memory) SaveProfile(_ context.Context, profile *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = *profile
	return nil
}

func (m *Memory) GetBooking(_ context.Context, bookingID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[bookingID]
	if !ok {
		return nil, nil
	}
	return &booking, nil
}

func (m *Memory) SaveBooking(_ context.Context, booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = *booking
	return nil
}

func copyMessage(msg *models.Message) models.Message {
	out := *msg
	if msg.ReadAt != nil {
		readAt := *msg.ReadAt
		out.ReadAt = &readAt
	}
	return out
}
