package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyoneil/Botpress/pkg/adapters/memory"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/persistence/middleware"
	"github.com/lyoneil/Botpress/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, cfg middleware.EncryptionConfig) middleware.Middleware {
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)

	ctx := context.Background()
	sessionID := "bot1::web::secret"
	originalState := domain.NewState()
	originalState.Context.CurrentFlow = "main.flow.json"
	originalState.User["creditCard"] = "4111-1111"

	require.NoError(t, secureStore.Save(ctx, sessionID, originalState))

	storedState, err := underlyingStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, storedState.User, "user memory must be hidden")
	assert.Empty(t, storedState.Context.CurrentFlow, "position must be hidden")
	assert.Contains(t, storedState.Temp, "__encrypted__")

	loadedState, err := secureStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "4111-1111", loadedState.User["creditCard"])
	assert.Equal(t, "main.flow.json", loadedState.Context.CurrentFlow)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := encrypted(t, middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	sessionID := "bot1::web::rotation"
	originalState := domain.NewState()
	originalState.Temp["data"] = "encrypted-with-old-key"
	require.NoError(t, secureStoreOld.Save(ctx, sessionID, originalState))

	secureStoreNew := encrypted(t, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loadedState, err := secureStoreNew.Load(ctx, sessionID)
	require.NoError(t, err, "fallback keys decrypt old envelopes")
	assert.Equal(t, "encrypted-with-old-key", loadedState.Temp["data"])

	loadedState.Temp["data"] = "encrypted-with-new-key"
	require.NoError(t, secureStoreNew.Save(ctx, sessionID, loadedState))

	_, err = secureStoreOld.Load(ctx, sessionID)
	assert.Error(t, err, "the old key alone cannot read new envelopes")
}

func TestEncryptionMiddleware_RefusesPlainState(t *testing.T) {
	underlyingStore := NewMockStore()
	require.NoError(t, underlyingStore.Save(context.Background(), "plain", domain.NewState()))

	secureStore := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := secureStore.Load(context.Background(), "plain")
	assert.ErrorContains(t, err, "missing encrypted data envelope")

	_, err = secureStore.Load(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	parsed, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)
	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.ErrorContains(t, err, "32 bytes")
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunStateStoreContract(t, mw(memory.NewStore()))
}
