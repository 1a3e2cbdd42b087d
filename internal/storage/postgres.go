package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pawchat/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the PostgreSQL-backed Storage.
type Service struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

var _ Storage = (*Service)(nil)

// Open connects to PostgreSQL and runs the migrations.
func Open(dsn string, logger *slog.Logger) (*Service, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %w", models.ErrStoreUnavailable, err)
	}
	s := NewStorageService(db, logger)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{DB: db, Logger: logger}
}

// Migrate creates or updates the tables of every model.
func (s *Service) Migrate() error {
	err := s.DB.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
		&models.Profile{},
		&models.Booking{},
	)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// unavailable wraps a driver error so callers can match ErrStoreUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrStoreUnavailable, op, err)
}

// isUUID reports whether id can be compared against a uuid column. Postgres
// rejects anything else with 22P02, which is a lookup miss, not an outage.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// FindOrCreateConversation looks the pair up by its key and inserts it on a miss.
// A concurrent first contact loses the ON CONFLICT race and re-reads the winner.
func (s *Service) FindOrCreateConversation(ctx context.Context, userA, userB string, bookingRef *string) (*models.Conversation, bool, error) {
	if err := validatePair(userA, userB); err != nil {
		return nil, false, err
	}
	db := s.DB.WithContext(ctx)
	key := models.PairKey(userA, userB)

	existing, err := s.conversationByPair(db, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, unavailable("find conversation", err)
	}

	conv := &models.Conversation{
		ParticipantA: userA,
		ParticipantB: userB,
		BookingRef:   bookingRef,
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(conv)
	if res.Error != nil {
		return nil, false, unavailable("create conversation", res.Error)
	}
	if res.RowsAffected == 1 {
		s.Logger.Info("conversation created", "conversation_id", conv.ID, "participant_a", userA, "participant_b", userB)
		return conv, true, nil
	}

	existing, err = s.conversationByPair(db, key)
	if err != nil {
		return nil, false, unavailable("re-read conversation", err)
	}
	return existing, false, nil
}

func (s *Service) conversationByPair(db *gorm.DB, key string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := db.Where("pair_key = ?", key).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *Service) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if !isUUID(conversationID) {
		return nil, models.ErrConversationNotFound
	}
	var conv models.Conversation
	err := s.DB.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrConversationNotFound
	}
	if err != nil {
		return nil, unavailable("get conversation", err)
	}
	return &conv, nil
}

func (s *Service) ListConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.DB.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("last_message_at desc").
		Order("id").
		Find(&convs).Error
	if err != nil {
		return nil, unavailable("list conversations", err)
	}
	return convs, nil
}

// AppendMessage checks membership, inserts the message and advances the parent's
// last_message_at in one transaction.
func (s *Service) AppendMessage(ctx context.Context, conversationID, senderID, body string) (*models.Message, error) {
	body, err := normalizeBody(body)
	if err != nil {
		return nil, err
	}
	if !isUUID(conversationID) {
		return nil, models.ErrConversationNotFound
	}

	var msg *models.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.Where("id = ?", conversationID).First(&conv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrConversationNotFound
			}
			return unavailable("load conversation", err)
		}
		if !conv.HasParticipant(senderID) {
			return models.ErrNotAParticipant
		}

		msg = &models.Message{
			ConversationID: conversationID,
			SenderID:       senderID,
			Body:           body,
			CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		}
		if err := tx.Create(msg).Error; err != nil {
			return unavailable("insert message", err)
		}

		// Concurrent senders commit in any order; last_message_at only moves forward.
		err := tx.Model(&models.Conversation{}).
			Where("id = ? AND last_message_at < ?", conversationID, msg.CreatedAt).
			Update("last_message_at", msg.CreatedAt).Error
		if err != nil {
			return unavailable("touch conversation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages отримує історію повідомлень, сортуючи за часом створення.
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	history := []models.Message{}
	if !isUUID(conversationID) {
		return history, nil
	}
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Order("id asc").
		Find(&history).Error
	if err != nil {
		s.Logger.Error("failed to list messages", "conversation_id", conversationID, "error", err)
		return nil, unavailable("list messages", err)
	}
	return history, nil
}

// LastMessage returns nil without error for an empty conversation.
func (s *Service) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	if !isUUID(conversationID) {
		return nil, nil
	}
	var msg models.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc").
		Order("id desc").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("last message", err)
	}
	return &msg, nil
}

// MarkRead stamps every unread message from the other participant created up to upTo.
func (s *Service) MarkRead(ctx context.Context, conversationID, viewerID string, upTo time.Time) (int64, error) {
	if err := s.requireParticipant(ctx, conversationID, viewerID); err != nil {
		return 0, err
	}
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL AND created_at <= ?", conversationID, viewerID, upTo).
		Update("read_at", time.Now().UTC())
	if res.Error != nil {
		return 0, unavailable("mark read", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkMessageRead stamps a single message; false when it was already read or sent by the viewer.
func (s *Service) MarkMessageRead(ctx context.Context, conversationID, messageID, viewerID string) (bool, error) {
	if err := s.requireParticipant(ctx, conversationID, viewerID); err != nil {
		return false, err
	}
	if !isUUID(messageID) {
		return false, models.ErrMessageNotFound
	}
	db := s.DB.WithContext(ctx)
	res := db.Model(&models.Message{}).
		Where("id = ? AND conversation_id = ? AND sender_id <> ? AND read_at IS NULL", messageID, conversationID, viewerID).
		Update("read_at", time.Now().UTC())
	if res.Error != nil {
		return false, unavailable("mark message read", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := db.Model(&models.Message{}).Where("id = ? AND conversation_id = ?", messageID, conversationID).Count(&count).Error; err != nil {
		return false, unavailable("find message", err)
	}
	if count == 0 {
		return false, models.ErrMessageNotFound
	}
	return false, nil
}

func (s *Service) UnreadCount(ctx context.Context, conversationID, viewerID string) (int64, error) {
	var count int64
	if !isUUID(conversationID) {
		return 0, nil
	}
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, viewerID).
		Count(&count).Error
	if err != nil {
		return 0, unavailable("unread count", err)
	}
	return count, nil
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID string) error {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return models.ErrNotAParticipant
	}
	return nil
}

// GetProfile returns nil without error when the profile service has no record.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get profile", err)
	}
	return &profile, nil
}

func (s *Service) SaveProfile(ctx context.Context, profile *models.Profile) error {
	if err := s.DB.WithContext(ctx).Save(profile).Error; err != nil {
		return unavailable("save profile", err)
	}
	return nil
}

// GetBooking returns nil without error when the booking does not exist.
func (s *Service) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := s.DB.WithContext(ctx).Where("id = ?", bookingID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get booking", err)
	}
	return &booking, nil
}

func (s *Service) SaveBooking(ctx context.Context, booking *models.Booking) error {
	if err := s.DB.WithContext(ctx).Save(booking).Error; err != nil {
		return unavailable("save booking", err)
	}
	return nil
}
