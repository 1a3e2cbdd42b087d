package session_test

import (
	"context"
	"testing"
	"time"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/chathub"
	"pawchat/backend/internal/session"
	"pawchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two open chats on one in-process hub exchange messages end to end.
func TestLocalBackend_TwoParticipants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := chathub.NewHub(nil)
	go hub.Run(ctx)

	store := storage.NewMemory()
	svc := chat.NewService(store, hub, nil, nil)
	id, err := svc.FindOrCreateConversation(ctx, "owner", "sitter", nil)
	require.NoError(t, err)

	_, err = svc.AppendMessage(ctx, id, "sitter", "before you opened")
	require.NoError(t, err)

	subscriber := session.BridgeSubscriber{Bridge: hub}
	owner := session.NewController(id, "owner", &session.LocalBackend{Service: svc, ViewerID: "owner"}, subscriber)
	sitter := session.NewController(id, "sitter", &session.LocalBackend{Service: svc, ViewerID: "sitter"}, subscriber)
	defer owner.Close()
	defer sitter.Close()

	require.NoError(t, owner.Open(ctx))
	require.NoError(t, sitter.Open(ctx))

	unread, err := svc.UnreadCount(ctx, id, "owner")
	require.NoError(t, err)
	assert.Zero(t, unread, "opening the chat marks history read")

	owner.SetInput("Rex had his walk")
	_, err = owner.Send(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(sitter.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, owner.Messages(), 2)

	// the sitter's open chat acknowledged the push
	assert.Eventually(t, func() bool {
		n, err := svc.UnreadCount(ctx, id, "sitter")
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLocalBackend_StrangerCannotOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := chathub.NewHub(nil)
	go hub.Run(ctx)

	svc := chat.NewService(storage.NewMemory(), hub, nil, nil)
	id, err := svc.FindOrCreateConversation(ctx, "owner", "sitter", nil)
	require.NoError(t, err)

	ctrl := session.NewController(id, "stranger", &session.LocalBackend{Service: svc, ViewerID: "stranger"}, session.BridgeSubscriber{Bridge: hub})
	err = ctrl.Open(ctx)

	assert.Error(t, err)
	assert.Equal(t, session.Failed, ctrl.State())
}
