package ports

import (
	"context"
	"testing"
	"time"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := domain.ConversationKey{
		BotID:   "contract-bot",
		Channel: "web",
		UserID:  "user-" + time.Now().Format("20060102150405"),
	}.String()

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState()
		state.Context.CurrentFlow = "main.flow.json"
		state.Context.CurrentNode = "entry"
		state.Temp["foo"] = "bar"
		state.Workflow.Variables["count"] = 42
		state.Session.Values["topic"] = "billing"
		state.AppendTurn(domain.DialogTurnHistory{EventID: "evt-1", ReplyPreview: "#builtin_text"}, 0)
		state.PushStack("main.flow.json", "entry")

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "main.flow.json", loaded.Context.CurrentFlow)
		assert.Equal(t, "entry", loaded.Context.CurrentNode)
		assert.Equal(t, "bar", loaded.Temp["foo"])
		assert.Equal(t, "billing", loaded.Session.Values["topic"])
		require.Len(t, loaded.Session.LastMessages, 1)
		assert.Equal(t, "evt-1", loaded.Session.LastMessages[0].EventID)
		// JSON persistence converts ints to float64; existence is what matters here.
		assert.NotNil(t, loaded.Workflow.Variables["count"])
		assert.Len(t, loaded.Stacktrace, 1)
	})

	t.Run("Loaded State Is Detached", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Temp["foo"] = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.Temp["foo"], "mutating a loaded state must not leak into the store")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewState())
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Delete of a missing session is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewState())
		_ = store.Save(ctx, id2, domain.NewState())

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
