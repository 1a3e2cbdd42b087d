package chat_test

import (
	"context"
	"errors"
	"testing"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProfileCache is a mock implementation of chat.ProfileCache.
type MockProfileCache struct {
	mock.Mock
}

func (m *MockProfileCache) Get(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if p, ok := args.Get(0).(*models.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfileCache) Set(ctx context.Context, profile *models.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func TestResolver_CacheHitSkipsStore(t *testing.T) {
	store := storage.NewMemory()
	cache := new(MockProfileCache)
	cache.On("Get", mock.Anything, "sitter").Return(&models.Profile{UserID: "sitter", DisplayName: "Cached Sam"}, nil)

	got, err := chat.NewResolver(store, cache, nil).Resolve(context.Background(), "sitter")

	require.NoError(t, err)
	assert.Equal(t, "Cached Sam", got.DisplayName)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestResolver_MissReadsStoreAndFillsCache(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.SaveProfile(ctx, &models.Profile{UserID: "sitter", DisplayName: "Sam"}))
	cache := new(MockProfileCache)
	cache.On("Get", mock.Anything, "sitter").Return(nil, storage.ErrCacheMiss)
	cache.On("Set", mock.Anything, mock.MatchedBy(func(p *models.Profile) bool {
		return p.UserID == "sitter"
	})).Return(nil)

	got, err := chat.NewResolver(store, cache, nil).Resolve(ctx, "sitter")

	require.NoError(t, err)
	assert.Equal(t, "Sam", got.DisplayName)
	cache.AssertExpectations(t)
}

func TestResolver_CacheFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.SaveProfile(ctx, &models.Profile{UserID: "owner", DisplayName: "Olga"}))
	cache := new(MockProfileCache)
	cache.On("Get", mock.Anything, "owner").Return(nil, errors.New("connection refused"))
	cache.On("Set", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	got, err := chat.NewResolver(store, cache, nil).Resolve(ctx, "owner")

	require.NoError(t, err)
	assert.Equal(t, "Olga", got.DisplayName)
}

func TestResolver_UnknownUserGetsPlaceholder(t *testing.T) {
	got, err := chat.NewResolver(storage.NewMemory(), nil, nil).Resolve(context.Background(), "ghost")

	require.NoError(t, err)
	assert.Equal(t, models.PlaceholderProfile("ghost"), got)
}
