package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pawchat/backend/internal/api/handler"
	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/chathub"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	tokens *handler.TokenIssuer
	store  *storage.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := chathub.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	store := storage.NewMemory()
	svc := chat.NewService(store, hub, nil, nil)
	tokens := handler.NewTokenIssuer("test-secret")
	h := handler.NewHandler(svc, hub, tokens, nil)
	h.DevTokens = true

	return &testServer{router: h.Router(), tokens: tokens, store: store}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.tokens.Mint(userID)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createConversation(t *testing.T, from, to string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/conversations", from, map[string]any{"other_user_id": to})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		ConversationID string `json:"conversation_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ConversationID)
	return resp.ConversationID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIssueToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/auth/token", "", map[string]string{"user_id": "owner"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	sub, err := s.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "owner", sub)
}

func TestRequireUser(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := handler.NewTokenIssuer("other-secret")
	forged, err := other.Mint("owner")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/conversations?token="+forged, nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/conversations?token="+s.token(t, "owner"), nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateConversation_Idempotent(t *testing.T) {
	s := newTestServer(t)

	first := s.createConversation(t, "u1", "u2")
	second := s.createConversation(t, "u2", "u1")

	assert.Equal(t, first, second)
}

func TestCreateConversation_SelfIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/conversations", "u1", map[string]any{"other_user_id": "u1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.CodeInvalidParticipants, decodeError(t, w).Code)
}

func TestMessagesAndReadState(t *testing.T) {
	s := newTestServer(t)
	convID := s.createConversation(t, "owner", "sitter")
	base := "/conversations/" + convID

	for _, body := range []string{"one", "two", "three"} {
		w := s.do(t, http.MethodPost, base+"/messages", "owner", map[string]string{"body": body})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodGet, base+"/messages", "sitter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Body)
	assert.Equal(t, "three", history[2].Body)

	w = s.do(t, http.MethodGet, base+"/unread", "sitter", nil)
	assert.JSONEq(t, `{"unread":3}`, w.Body.String())

	w = s.do(t, http.MethodPost, base+"/read", "sitter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"marked":3}`, w.Body.String())

	w = s.do(t, http.MethodGet, base+"/unread", "sitter", nil)
	assert.JSONEq(t, `{"unread":0}`, w.Body.String())
}

func TestMarkMessageRead(t *testing.T) {
	s := newTestServer(t)
	convID := s.createConversation(t, "owner", "sitter")
	base := "/conversations/" + convID

	w := s.do(t, http.MethodPost, base+"/messages", "owner", map[string]string{"body": "hi"})
	require.Equal(t, http.StatusCreated, w.Code)
	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))

	w = s.do(t, http.MethodPost, base+"/messages/"+msg.ID+"/read", "sitter", nil)
	assert.JSONEq(t, `{"updated":true}`, w.Body.String())

	w = s.do(t, http.MethodPost, base+"/messages/"+msg.ID+"/read", "sitter", nil)
	assert.JSONEq(t, `{"updated":false}`, w.Body.String())

	w = s.do(t, http.MethodPost, base+"/messages/missing/read", "sitter", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	convID := s.createConversation(t, "owner", "sitter")
	base := "/conversations/" + convID

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{"empty body", http.MethodPost, base + "/messages", "owner", map[string]string{"body": "  "}, http.StatusBadRequest, models.CodeEmptyBody},
		{"too long", http.MethodPost, base + "/messages", "owner", map[string]string{"body": strings.Repeat("x", 4001)}, http.StatusBadRequest, models.CodeBodyTooLong},
		{"stranger append", http.MethodPost, base + "/messages", "stranger", map[string]string{"body": "hi"}, http.StatusForbidden, models.CodeNotAParticipant},
		{"stranger history", http.MethodGet, base + "/messages", "stranger", nil, http.StatusForbidden, models.CodeNotAParticipant},
		{"stranger unread", http.MethodGet, base + "/unread", "stranger", nil, http.StatusForbidden, models.CodeNotAParticipant},
		{"unknown conversation", http.MethodGet, "/conversations/missing", "owner", nil, http.StatusNotFound, models.CodeConversationNotFound},
		{"unknown conversation unread", http.MethodGet, "/conversations/missing/unread", "owner", nil, http.StatusNotFound, models.CodeConversationNotFound},
		{"missing other user", http.MethodPost, "/conversations", "owner", map[string]string{}, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestDirectoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.SaveProfile(context.Background(), &models.Profile{UserID: "sitter", DisplayName: "Sam Walker"}))
	convID := s.createConversation(t, "owner", "sitter")
	w := s.do(t, http.MethodPost, "/conversations/"+convID+"/messages", "sitter", map[string]string{"body": "Rex is fine"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/conversations", "owner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []models.ConversationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "Sam Walker", summaries[0].Other.DisplayName)
	assert.Equal(t, int64(1), summaries[0].UnreadCount)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "Rex is fine", summaries[0].LastMessage.Body)

	w = s.do(t, http.MethodGet, "/conversations/"+convID+"/summary", "sitter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary models.ConversationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Zero(t, summary.UnreadCount)

	w = s.do(t, http.MethodGet, "/conversations/"+convID, "owner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view models.ConversationView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, convID, view.Conversation.ID)
	assert.Equal(t, "Sam Walker", view.Other.DisplayName)
}

// dialWS opens a stream and waits for the subscription acknowledgement.
func dialWS(t *testing.T, srv *httptest.Server, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path + "?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	ack := readEvent(t, ws)
	require.Equal(t, models.EventSubscribed, ack.Type)
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) models.MessageEvent {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev models.MessageEvent
	require.NoError(t, ws.ReadJSON(&ev))
	return ev
}

func TestConversationStream_PushesInserts(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	convID := s.createConversation(t, "owner", "sitter")

	ws := dialWS(t, srv, "/ws/conversations/"+convID, s.token(t, "sitter"))
	w := s.do(t, http.MethodPost, "/conversations/"+convID+"/messages", "owner", map[string]string{"body": "ping"})
	require.Equal(t, http.StatusCreated, w.Code)

	ev := readEvent(t, ws)
	assert.Equal(t, models.EventMessageInserted, ev.Type)
	assert.Equal(t, convID, ev.ConversationID)
	assert.Equal(t, "ping", ev.Message.Body)
	assert.ElementsMatch(t, []string{"owner", "sitter"}, ev.Participants)
}

func TestConversationStream_AcknowledgesSubscription(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	convID := s.createConversation(t, "owner", "sitter")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversations/" + convID + "?token=" + s.token(t, "owner")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	ack := readEvent(t, ws)
	assert.Equal(t, models.EventSubscribed, ack.Type)
	assert.Equal(t, convID, ack.ConversationID)
}

func TestConversationStream_RejectsStranger(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	convID := s.createConversation(t, "owner", "sitter")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversations/" + convID + "?token=" + s.token(t, "stranger")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestInboxStream_FiltersByParticipant(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	mine := s.createConversation(t, "owner", "sitter")
	other := s.createConversation(t, "walker", "sitter")

	ws := dialWS(t, srv, "/ws/inbox", s.token(t, "owner"))
	w := s.do(t, http.MethodPost, "/conversations/"+other+"/messages", "walker", map[string]string{"body": "not for owner"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/conversations/"+mine+"/messages", "sitter", map[string]string{"body": "for owner"})
	require.Equal(t, http.StatusCreated, w.Code)

	ev := readEvent(t, ws)
	assert.Equal(t, mine, ev.ConversationID)
	assert.Equal(t, "for owner", ev.Message.Body)
}
