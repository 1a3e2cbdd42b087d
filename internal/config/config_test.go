package config_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"pawchat/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("PAWCHAT_STORAGE", "")
	t.Setenv("PAWCHAT_BRIDGE", "")
	t.Setenv("PROFILE_CACHE_TTL", "")

	cfg := config.FromEnv()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.Equal(t, "redis", cfg.BridgeDriver)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PAWCHAT_STORAGE", "memory")
	t.Setenv("PAWCHAT_BRIDGE", "local")
	t.Setenv("PAWCHAT_REDIS_DB", "3")
	t.Setenv("PROFILE_CACHE_TTL", "30s")
	t.Setenv("PAWCHAT_LOG_LEVEL", "debug")
	t.Setenv("AUTH_DEV_TOKENS", "true")

	cfg := config.FromEnv()

	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, "local", cfg.BridgeDriver)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 30*time.Second, cfg.ProfileCacheTTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.DevTokens)
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("PAWCHAT_REDIS_DB", "not-a-number")
	t.Setenv("PROFILE_CACHE_TTL", "soon")

	cfg := config.FromEnv()

	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
}

func TestValidate_UnknownDrivers(t *testing.T) {
	cfg := config.FromEnv()
	cfg.StorageDriver = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = config.FromEnv()
	cfg.BridgeDriver = "nats"
	assert.Error(t, cfg.Validate())
}

func TestSetupLoggerWithWriters_FansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := config.SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("message appended", "conversation_id", "c1")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "message appended")
	assert.NotContains(t, stderr.String(), "hidden")

	var record map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &record))
	assert.Equal(t, "message appended", record["msg"])
	assert.Equal(t, "c1", record["conversation_id"])
}
