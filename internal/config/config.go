// Package config loads runtime settings from the environment and sets up logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values.
type Config struct {
	// HTTP
	ListenAddr string

	// Storage: "postgres" or "memory"
	StorageDriver string
	PostgresDSN   string

	// Realtime bridge: "local" or "redis"
	BridgeDriver string
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	// Profiles
	ProfileCacheTTL time.Duration

	// Auth
	JWTSecret     string
	DevTokens     bool
	ServerBaseURL string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() Config {
	return Config{
		ListenAddr: getEnv("PAWCHAT_LISTEN_ADDR", ":8080"),

		StorageDriver: getEnv("PAWCHAT_STORAGE", "postgres"),
		PostgresDSN: getEnv("PAWCHAT_POSTGRES_DSN",
			"host=localhost user=user password=password dbname=pawchatdb port=5432 sslmode=disable"),

		BridgeDriver: getEnv("PAWCHAT_BRIDGE", "redis"),
		RedisAddr:    getEnv("PAWCHAT_REDIS_ADDR", "localhost:6379"),
		RedisPass:    getEnv("PAWCHAT_REDIS_PASSWORD", ""),
		RedisDB:      getEnvInt("PAWCHAT_REDIS_DB", 0),

		ProfileCacheTTL: getEnvDuration("PROFILE_CACHE_TTL", 5*time.Minute),

		JWTSecret:     getEnv("PAWCHAT_JWT_SECRET", "dev-secret-change-me"),
		DevTokens:     getEnv("AUTH_DEV_TOKENS", "false") == "true",
		ServerBaseURL: getEnv("PAWCHAT_SERVER_URL", "http://localhost:8080"),

		LogFile:  getEnv("PAWCHAT_LOG_FILE", "/tmp/pawchat.log"),
		LogLevel: parseLogLevel(getEnv("PAWCHAT_LOG_LEVEL", "INFO")),
	}
}

// Validate rejects driver names the server does not know.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	switch c.BridgeDriver {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown bridge driver %q", c.BridgeDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("PAWCHAT_JWT_SECRET must not be empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
