package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pawchat/backend/internal/api/handler"
	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/chathub"
	"pawchat/backend/internal/config"
	"pawchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// dependencies is everything main wires together.
type dependencies struct {
	store  storage.Storage
	redis  *redis.Client // nil when neither the bridge nor the profile cache needs it
	bridge chathub.Bridge
	// run starts the bridge goroutines
	run func(ctx context.Context) error
}

func setupDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	// 1. Сховище
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("using in-memory storage, data is lost on restart")
		deps.store = storage.NewMemory()
	default:
		svc, err := storage.Open(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
		}
		deps.store = svc
	}

	// 2. Redis
	if cfg.BridgeDriver == "redis" || cfg.ProfileCacheTTL > 0 {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			if cfg.BridgeDriver == "redis" {
				return nil, fmt.Errorf("failed to connect Redis: %w", err)
			}
			logger.Warn("redis unavailable, profile cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
		} else {
			deps.redis = rdb
		}
	}

	// 3. Міст подій
	hub := chathub.NewHub(logger)
	if cfg.BridgeDriver == "redis" {
		relay := chathub.NewRedisRelay(hub, deps.redis, logger)
		deps.bridge = relay
		deps.run = func(ctx context.Context) error {
			go hub.Run(ctx)
			errCh := make(chan error, 1)
			go func() { errCh <- relay.Run(ctx) }()
			select {
			case <-relay.Ready():
			case err := <-errCh:
				return fmt.Errorf("redis relay: %w", err)
			}
			go func() {
				if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("redis relay stopped", "error", err)
				}
			}()
			return nil
		}
	} else {
		deps.bridge = hub
		deps.run = func(ctx context.Context) error {
			go hub.Run(ctx)
			return nil
		}
	}

	logger.Info("dependencies ready", "storage", cfg.StorageDriver, "bridge", cfg.BridgeDriver)
	return deps, nil
}

func main() {
	cfg := config.Load()
	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("Starting PawChat Backend...", "addr", cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	deps, err := setupDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	if deps.redis != nil {
		defer deps.redis.Close()
	}

	// 2. Запуск основних Goroutines
	if err := deps.run(ctx); err != nil {
		logger.Error("realtime bridge failed", "error", err)
		os.Exit(1)
	}

	var cache chat.ProfileCache
	if deps.redis != nil && cfg.ProfileCacheTTL > 0 {
		cache = storage.NewProfileCache(deps.redis, cfg.ProfileCacheTTL)
	}
	resolver := chat.NewResolver(deps.store, cache, logger)
	svc := chat.NewService(deps.store, deps.bridge, resolver, logger)

	// 3. Налаштування Gin та роутингу
	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(svc, deps.bridge, handler.NewTokenIssuer(cfg.JWTSecret), logger)
	h.DevTokens = cfg.DevTokens
	if cfg.DevTokens {
		logger.Warn("development token issuer enabled")
	}

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        h.Router(),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
