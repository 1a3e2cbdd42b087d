package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisRelay fans events out across server nodes. Publish writes to Redis; the
// listener started by Run feeds every received event into the local Hub, which
// owns the subscriptions.
type RedisRelay struct {
	Hub    *Hub
	Redis  *redis.Client
	Logger *slog.Logger

	ready chan struct{}
}

var _ Bridge = (*RedisRelay)(nil)

// NewRedisRelay Constructor
func NewRedisRelay(hub *Hub, rdb *redis.Client, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{Hub: hub, Redis: rdb, Logger: logger, ready: make(chan struct{})}
}

// ChannelFor is the Redis channel carrying one conversation's events.
func ChannelFor(conversationID string) string {
	return config.RedisChannelPrefix + conversationID
}

// Publish encodes ev and publishes it on the conversation's channel.
func (r *RedisRelay) Publish(ctx context.Context, ev models.MessageEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.Redis.Publish(ctx, ChannelFor(ev.ConversationID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ready is closed once the pattern subscription is confirmed by Redis.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run listens on every conversation channel until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.Redis.PSubscribe(ctx, config.RedisChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	close(r.ready)
	r.Logger.Info("redis relay subscribed", "pattern", config.RedisChannelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.MessageEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.Logger.Error("error unmarshalling redis message", "channel", msg.Channel, "error", err)
				continue
			}
			if ev.ConversationID == "" {
				ev.ConversationID = strings.TrimPrefix(msg.Channel, config.RedisChannelPrefix)
			}
			if err := r.Hub.Publish(ctx, ev); err != nil {
				r.Logger.Warn("local dispatch failed", "conversation_id", ev.ConversationID, "error", err)
			}
		}
	}
}

func (r *RedisRelay) Subscribe(conversationID string, h Handler) *Subscription {
	return r.Hub.Subscribe(conversationID, h)
}

func (r *RedisRelay) SubscribeAll(h Handler) *Subscription {
	return r.Hub.SubscribeAll(h)
}

func (r *RedisRelay) Unsubscribe(sub *Subscription) {
	r.Hub.Unsubscribe(sub)
}
