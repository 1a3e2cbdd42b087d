package config

import "time"

const (
	// Messages
	MaxMessageLength = 4000

	// Realtime bridge
	SubscriberBufferSize = 64
	RedisChannelPrefix   = "pawchat:conversation:"

	// WebSocket
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxFrameSize   = 512
	SendBufferSize = 256

	// Auth
	TokenTTL    = 72 * time.Hour
	TokenIssuer = "pawchat-service"

	// HTTP
	SlowRequestThreshold = 250 * time.Millisecond
)
