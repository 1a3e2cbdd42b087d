package handler_test

import (
	"testing"
	"time"

	"pawchat/backend/internal/api/handler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := handler.NewTokenIssuer("secret")

	token, err := issuer.Mint("owner")
	require.NoError(t, err)

	sub, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "owner", sub)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer := handler.NewTokenIssuer("secret")
	issuer.TTL = -time.Minute

	token, err := issuer.Mint("owner")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.Error(t, err)
}

func TestTokenIssuer_RejectsOtherIssuer(t *testing.T) {
	issuer := handler.NewTokenIssuer("secret")
	foreign := handler.NewTokenIssuer("secret")
	foreign.Issuer = "someone-else"

	token, err := foreign.Mint("owner")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.Error(t, err)
}
