package chat

import (
	"context"
	"errors"
	"log/slog"

	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"
)

// ProfileStore is the profile lookup service.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// ProfileCache is an optional read-through cache in front of ProfileStore.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Set(ctx context.Context, profile *models.Profile) error
}

// Resolver maps participant ids to display profiles.
type Resolver struct {
	Profiles ProfileStore
	Cache    ProfileCache // may be nil
	Logger   *slog.Logger
}

// NewResolver Constructor
func NewResolver(profiles ProfileStore, cache ProfileCache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{Profiles: profiles, Cache: cache, Logger: logger}
}

// Resolve returns the profile of userID. Unknown users get a placeholder; cache
// failures fall through to the store.
func (r *Resolver) Resolve(ctx context.Context, userID string) (models.Profile, error) {
	if r.Cache != nil {
		cached, err := r.Cache.Get(ctx, userID)
		if err == nil && cached != nil {
			return *cached, nil
		}
		if err != nil && !errors.Is(err, storage.ErrCacheMiss) {
			r.Logger.Warn("profile cache read failed", "user_id", userID, "error", err)
		}
	}

	profile, err := r.Profiles.GetProfile(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	if profile == nil {
		return models.PlaceholderProfile(userID), nil
	}

	if r.Cache != nil {
		if err := r.Cache.Set(ctx, profile); err != nil {
			r.Logger.Warn("profile cache write failed", "user_id", userID, "error", err)
		}
	}
	return *profile, nil
}
