package realtime_test

import (
	"testing"
	"time"

	"github.com/lyoneil/Botpress/pkg/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_Addressing(t *testing.T) {
	data := map[string]any{"text": "hi"}

	admins := realtime.ForAdmins("bp.log", data)
	assert.Equal(t, realtime.NamespaceAdmin, admins.Namespace())
	assert.Empty(t, admins.Target())

	visitor := realtime.ForVisitor("ada", "webchat.message", data)
	assert.Equal(t, "guest.webchat.message", visitor.EventName)
	assert.Equal(t, realtime.NamespaceGuest, visitor.Namespace())
	assert.Equal(t, "visitor:ada", visitor.Target())
	assert.NotContains(t, data, "__room", "the caller's data is not modified")

	already := realtime.ForVisitor("ada", "guest.typing", nil)
	assert.Equal(t, "guest.typing", already.EventName)

	socket := realtime.ForSocket("sock-1", "guest.reply", nil)
	assert.Equal(t, "sock-1", socket.Target())

	id, ok := realtime.VisitorOfRoom("visitor:ada")
	assert.True(t, ok)
	assert.Equal(t, "ada", id)
	_, ok = realtime.VisitorOfRoom("admins")
	assert.False(t, ok)
}

func TestHMACTokens(t *testing.T) {
	tokens, err := realtime.NewHMACTokens("s3cret")
	require.NoError(t, err)

	token, err := tokens.Sign("admin", time.Minute)
	require.NoError(t, err)

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	other, _ := realtime.NewHMACTokens("other")
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, realtime.ErrInvalidToken)

	_, err = tokens.Verify("a.b")
	assert.ErrorIs(t, err, realtime.ErrInvalidToken)

	expired, err := tokens.Sign("admin", -time.Minute)
	require.NoError(t, err)
	_, err = tokens.Verify(expired)
	assert.ErrorIs(t, err, realtime.ErrExpiredToken)

	_, err = realtime.NewHMACTokens("")
	assert.Error(t, err)
}
