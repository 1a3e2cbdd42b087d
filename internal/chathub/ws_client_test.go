package chathub_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pawchat/backend/internal/chathub"
	"pawchat/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair starts a server that wraps each upgraded socket in a chathub.Conn.
func wsPair(t *testing.T) (*websocket.Conn, chan *chathub.Conn) {
	t.Helper()
	conns := make(chan *chathub.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := chathub.NewConn("sitter", ws, nil)
		conn.Run()
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, conns
}

func TestConn_PushesEventsAsJSON(t *testing.T) {
	client, conns := wsPair(t)
	conn := <-conns

	require.NoError(t, conn.SendEvent(event("c1", "m1")))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var ev models.MessageEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "c1", ev.ConversationID)
	assert.Equal(t, "m1", ev.Message.ID)
}

func TestConn_ClientDisconnectClosesConn(t *testing.T) {
	client, conns := wsPair(t)
	conn := <-conns

	require.NoError(t, client.Close())

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("conn should close after the client disconnects")
	}
	assert.ErrorIs(t, conn.SendEvent(event("c1", "m1")), chathub.ErrConnClosed)
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	_, conns := wsPair(t)
	conn := <-conns

	conn.Close()
	conn.Close()
	<-conn.Done()
}
