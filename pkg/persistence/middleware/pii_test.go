package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	mw, err := middleware.NewPIIMiddleware([]string{"(?i)password", "ssn"})
	require.NoError(t, err)
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "bot1::web::pii"
	state := domain.NewState()
	state.User["username"] = "jdoe"
	state.User["Password"] = "secret123"
	state.Session.Values["details"] = map[string]any{
		"address":    "123 St",
		"ssn_number": "999-99-9999",
	}
	state.Workflow.Variables["ssn"] = "111-11-1111"
	state.Temp["ssn"] = "temp is not masked"

	require.NoError(t, secureStore.Save(ctx, sessionID, state))
	assert.Equal(t, "secret123", state.User["Password"], "the caller's state must not be modified")

	storedState, err := underlyingStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", storedState.User["username"])
	assert.Equal(t, middleware.Mask, storedState.User["Password"])
	assert.Equal(t, middleware.Mask, storedState.Workflow.Variables["ssn"])
	assert.Equal(t, "temp is not masked", storedState.Temp["ssn"])

	details := storedState.Session.Values["details"].(map[string]any)
	assert.Equal(t, middleware.Mask, details["ssn_number"])
	assert.Equal(t, "123 St", details["address"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.ErrorContains(t, err, "invalid PII pattern")
}

func TestWrap_Order(t *testing.T) {
	underlyingStore := NewMockStore()
	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Wrap(underlyingStore, pii, enc)
	state := domain.NewState()
	state.User["secret"] = "hunter2"
	require.NoError(t, store.Save(context.Background(), "s", state))

	loaded, err := store.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.User["secret"], "masking happens before encryption")
}
