// Package handler exposes the messaging core over HTTP and WebSocket with gin.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/chathub"
	"pawchat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// Handler містить посилання на сервіс чату та міст подій
type Handler struct {
	Chat      *chat.Service
	Bridge    chathub.Bridge
	Tokens    *TokenIssuer
	DevTokens bool
	Logger    *slog.Logger
}

func NewHandler(svc *chat.Service, bridge chathub.Bridge, tokens *TokenIssuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Chat: svc, Bridge: bridge, Tokens: tokens, Logger: logger}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/auth/token", h.IssueToken)

	api := r.Group("/", h.RequireUser())
	{
		api.POST("/conversations", h.CreateConversation)
		api.GET("/conversations", h.ListConversations)
		api.GET("/conversations/:id", h.GetConversation)
		api.GET("/conversations/:id/summary", h.GetSummary)
		api.GET("/conversations/:id/messages", h.ListMessages)
		api.POST("/conversations/:id/messages", h.AppendMessage)
		api.POST("/conversations/:id/read", h.MarkRead)
		api.POST("/conversations/:id/messages/:messageID/read", h.MarkMessageRead)
		api.GET("/conversations/:id/unread", h.UnreadCount)

		api.GET("/ws/conversations/:id", h.ServeConversationStream)
		api.GET("/ws/inbox", h.ServeInboxStream)
	}
	return r
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidParticipants),
		errors.Is(err, models.ErrEmptyBody),
		errors.Is(err, models.ErrBodyTooLong):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotAParticipant):
		return http.StatusForbidden
	case errors.Is(err, models.ErrConversationNotFound),
		errors.Is(err, models.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps err onto a status and aborts the request.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "path", c.FullPath(), "user_id", CurrentUser(c), "error", err)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: models.ErrorCode(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}
