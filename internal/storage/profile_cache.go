package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pawchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss signals that the key is not cached.
var ErrCacheMiss = errors.New("cache: miss")

// ProfileCache keeps resolved profiles in Redis for a fixed TTL.
type ProfileCache struct {
	Redis *redis.Client
	TTL   time.Duration
}

// NewProfileCache Constructor
func NewProfileCache(rdb *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{Redis: rdb, TTL: ttl}
}

func profileKey(userID string) string {
	return "profile:" + userID
}

// Get returns ErrCacheMiss when the profile is not cached.
func (c *ProfileCache) Get(ctx context.Context, userID string) (*models.Profile, error) {
	raw, err := c.Redis.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get profile: %w", err)
	}
	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &profile, nil
}

func (c *ProfileCache) Set(ctx context.Context, profile *models.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, profileKey(profile.UserID), raw, c.TTL).Err()
}

// Invalidate drops the cached profile after the admin tool rewrites it.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	return c.Redis.Del(ctx, profileKey(userID)).Err()
}
