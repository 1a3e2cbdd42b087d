package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type createConversationRequest struct {
	OtherUserID      string  `json:"other_user_id" binding:"required"`
	BookingReference *string `json:"booking_reference"`
}

// CreateConversation is the rendezvous endpoint: it returns the conversation
// between the caller and other_user_id, creating it on first contact.
func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "other_user_id is required")
		return
	}
	id, err := h.Chat.FindOrCreateConversation(c.Request.Context(), CurrentUser(c), req.OtherUserID, req.BookingReference)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": id})
}

func (h *Handler) ListConversations(c *gin.Context) {
	summaries, err := h.Chat.ListConversations(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *Handler) GetConversation(c *gin.Context) {
	view, err := h.Chat.ConversationView(c.Request.Context(), c.Param("id"), CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.Chat.Summary(c.Request.Context(), c.Param("id"), CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// requireParticipant aborts unless the caller belongs to the :id conversation.
func (h *Handler) requireParticipant(c *gin.Context) bool {
	if _, err := h.Chat.GetConversation(c.Request.Context(), c.Param("id"), CurrentUser(c)); err != nil {
		h.respondError(c, err)
		return false
	}
	return true
}

func (h *Handler) ListMessages(c *gin.Context) {
	if !h.requireParticipant(c) {
		return
	}
	messages, err := h.Chat.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type appendMessageRequest struct {
	Body string `json:"body"`
}

func (h *Handler) AppendMessage(c *gin.Context) {
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	msg, err := h.Chat.AppendMessage(c.Request.Context(), c.Param("id"), CurrentUser(c), req.Body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type markReadRequest struct {
	UpTo *time.Time `json:"up_to"`
}

// MarkRead marks the other participant's messages as read, up to up_to when given.
func (h *Handler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid up_to")
			return
		}
	}
	var upTo time.Time
	if req.UpTo != nil {
		upTo = *req.UpTo
	}
	marked, err := h.Chat.MarkRead(c.Request.Context(), c.Param("id"), CurrentUser(c), upTo)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

func (h *Handler) MarkMessageRead(c *gin.Context) {
	updated, err := h.Chat.MarkMessageRead(c.Request.Context(), c.Param("id"), c.Param("messageID"), CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	unread, err := h.Chat.UnreadCount(c.Request.Context(), c.Param("id"), CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": unread})
}
