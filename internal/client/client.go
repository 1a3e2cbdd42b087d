// Package client talks to the PawChat server over HTTP and WebSocket. A Client
// acts for the user its token names and implements the session and inbox
// backends.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pawchat/backend/internal/inbox"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/session"
)

// ErrInvalidResponse marks a server reply that failed validation.
var ErrInvalidResponse = errors.New("client: invalid response")

// ErrUnauthorized is returned for 401 replies.
var ErrUnauthorized = errors.New("client: unauthorized")

var (
	_ session.Backend    = (*Client)(nil)
	_ session.Subscriber = (*Client)(nil)
	_ inbox.Backend      = (*Client)(nil)
	_ inbox.Subscriber   = (*Client)(nil)
)

// Client is an HTTP client for the PawChat server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for baseURL (e.g. http://localhost:8080) using token
// as the bearer credential.
func New(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// WithToken returns a copy of c authenticated as another token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// APIError is a non-2xx reply that maps onto no known sentinel.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server error: %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// do sends a JSON request and decodes a JSON reply into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", models.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("%w: %s %s: %w", ErrInvalidResponse, method, path, err)
		}
	}
	return nil
}

// decodeError maps a server error body back onto the model sentinels.
func decodeError(status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	if sentinel := models.ErrorFromCode(body.Code); sentinel != nil {
		return sentinel
	}
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", models.ErrStoreUnavailable, status)
	}
	msg := body.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return &APIError{Status: status, Code: body.Code, Message: msg}
}

func conversationPath(conversationID string, rest ...string) string {
	parts := append([]string{"/conversations", url.PathEscape(conversationID)}, rest...)
	return strings.Join(parts, "/")
}

// IssueToken asks a server running with development tokens for a token.
func (c *Client) IssueToken(ctx context.Context, userID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/token", map[string]string{"user_id": userID}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidResponse)
	}
	return resp.Token, nil
}

// FindOrCreateConversation returns the conversation with otherUserID.
func (c *Client) FindOrCreateConversation(ctx context.Context, otherUserID string, bookingRef *string) (string, error) {
	req := map[string]any{"other_user_id": otherUserID}
	if bookingRef != nil {
		req["booking_reference"] = *bookingRef
	}
	var resp struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/conversations", req, &resp); err != nil {
		return "", err
	}
	if resp.ConversationID == "" {
		return "", fmt.Errorf("%w: empty conversation id", ErrInvalidResponse)
	}
	return resp.ConversationID, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var list []models.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &list); err != nil {
		return nil, err
	}
	for i := range list {
		if err := validateSummary(&list[i], ""); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (c *Client) Summary(ctx context.Context, conversationID string) (*models.ConversationSummary, error) {
	var summary models.ConversationSummary
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID, "summary"), nil, &summary); err != nil {
		return nil, err
	}
	if err := validateSummary(&summary, conversationID); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) ConversationView(ctx context.Context, conversationID string) (*models.ConversationView, error) {
	var view models.ConversationView
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID), nil, &view); err != nil {
		return nil, err
	}
	if view.Conversation.ID != conversationID {
		return nil, fmt.Errorf("%w: conversation %q, asked for %q", ErrInvalidResponse, view.Conversation.ID, conversationID)
	}
	return &view, nil
}

func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID, "messages"), nil, &messages); err != nil {
		return nil, err
	}
	for i := range messages {
		if err := validateMessage(&messages[i], conversationID); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

func (c *Client) AppendMessage(ctx context.Context, conversationID, body string) (*models.Message, error) {
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID, "messages"), map[string]string{"body": body}, &msg); err != nil {
		return nil, err
	}
	if err := validateMessage(&msg, conversationID); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead marks everything the other participant sent as read.
func (c *Client) MarkRead(ctx context.Context, conversationID string) (int64, error) {
	var resp struct {
		Marked int64 `json:"marked"`
	}
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID, "read"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Marked, nil
}

func (c *Client) MarkMessageRead(ctx context.Context, conversationID, messageID string) (bool, error) {
	var resp struct {
		Updated bool `json:"updated"`
	}
	path := conversationPath(conversationID, "messages", url.PathEscape(messageID), "read")
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Updated, nil
}

func (c *Client) UnreadCount(ctx context.Context, conversationID string) (int64, error) {
	var resp struct {
		Unread int64 `json:"unread"`
	}
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID, "unread"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Unread, nil
}

func validateMessage(msg *models.Message, conversationID string) error {
	switch {
	case msg.ID == "":
		return fmt.Errorf("%w: message without id", ErrInvalidResponse)
	case msg.SenderID == "":
		return fmt.Errorf("%w: message %s without sender", ErrInvalidResponse, msg.ID)
	case msg.ConversationID != conversationID:
		return fmt.Errorf("%w: message %s belongs to %q", ErrInvalidResponse, msg.ID, msg.ConversationID)
	}
	return nil
}

func validateSummary(s *models.ConversationSummary, conversationID string) error {
	if s.Conversation.ID == "" {
		return fmt.Errorf("%w: summary without conversation id", ErrInvalidResponse)
	}
	if conversationID != "" && s.Conversation.ID != conversationID {
		return fmt.Errorf("%w: summary of %q, asked for %q", ErrInvalidResponse, s.Conversation.ID, conversationID)
	}
	if s.LastMessage != nil {
		return validateMessage(s.LastMessage, s.Conversation.ID)
	}
	return nil
}
