package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
	"github.com/lyoneil/Botpress/pkg/registry"
	"github.com/lyoneil/Botpress/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent() *domain.Event {
	evt := domain.NewEvent(domain.EventInit{
		ID:        "evt-1",
		Direction: domain.DirectionIncoming,
		BotID:     "bot1",
		Channel:   "web",
		Target:    "user1",
		Type:      "text",
		Payload:   map[string]any{"text": "hello"},
	})
	evt.State = domain.NewState()
	return evt
}

func TestRegistry_LocalActions(t *testing.T) {
	reg := registry.NewRegistry()
	ctx := context.Background()

	var got map[string]any
	reg.Register("greet", func(_ context.Context, call ports.ActionCall) error {
		got = call.ActionArgs
		return nil
	})

	ok, err := reg.HasAction(ctx, "bot1", "greet")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = reg.HasAction(ctx, "bot1", "unknown")
	assert.False(t, ok)

	err = reg.RunAction(ctx, ports.ActionCall{
		BotID:         "bot1",
		ActionName:    "greet",
		ActionArgs:    map[string]any{"name": "Ada"},
		IncomingEvent: newEvent(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["name"])
}

func TestRegistry_BotActionsShadowGlobal(t *testing.T) {
	reg := registry.NewRegistry()
	ctx := context.Background()

	var ran string
	reg.Register("lookup", func(context.Context, ports.ActionCall) error { ran = "global"; return nil })
	reg.RegisterForBot("bot2", "lookup", func(context.Context, ports.ActionCall) error { ran = "bot2"; return nil })
	reg.RegisterForBot("bot2", "private", func(context.Context, ports.ActionCall) error { return nil })

	require.NoError(t, reg.RunAction(ctx, ports.ActionCall{BotID: "bot1", ActionName: "lookup"}))
	assert.Equal(t, "global", ran)

	require.NoError(t, reg.RunAction(ctx, ports.ActionCall{BotID: "bot2", ActionName: "lookup"}))
	assert.Equal(t, "bot2", ran)

	ok, _ := reg.HasAction(ctx, "bot1", "private")
	assert.False(t, ok, "bot actions are not visible to other bots")

	assert.Equal(t, []string{"lookup", "private"}, reg.Names("bot2"))
	assert.Equal(t, []string{"lookup"}, reg.Names("bot1"))

	assert.True(t, reg.Unregister("bot2", "lookup"))
	assert.False(t, reg.Unregister("bot2", "lookup"))
	require.NoError(t, reg.RunAction(ctx, ports.ActionCall{BotID: "bot2", ActionName: "lookup"}))
	assert.Equal(t, "global", ran)
}

func TestRegistry_Errors(t *testing.T) {
	reg := registry.NewRegistry()
	ctx := context.Background()

	err := reg.RunAction(ctx, ports.ActionCall{BotID: "bot1", ActionName: "missing"})
	assert.ErrorIs(t, err, domain.ErrActionNotFound)

	boom := errors.New("boom")
	reg.Register("fails", func(context.Context, ports.ActionCall) error { return boom })
	assert.ErrorIs(t, reg.RunAction(ctx, ports.ActionCall{ActionName: "fails"}), boom)

	reg.Register("panics", func(context.Context, ports.ActionCall) error { panic("nil map") })
	err = reg.RunAction(ctx, ports.ActionCall{ActionName: "panics"})
	assert.ErrorContains(t, err, "panicked: nil map")
}

func TestRemoteClient_Run(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/action/run", r.URL.Path)
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := registry.NewRegistry(registry.WithRemote(registry.NewRemoteClient(registry.WithToken("secret"))))
	err := reg.RunAction(context.Background(), ports.ActionCall{
		BotID:         "bot1",
		ActionName:    "fetchWeather",
		ActionArgs:    map[string]any{"city": "Paris"},
		IncomingEvent: newEvent(),
		ActionServer:  &domain.ActionServer{ID: "remote", BaseURL: srv.URL + "/"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "bot1", body["botId"])
	assert.Equal(t, "fetchWeather", body["actionName"])
	assert.Equal(t, map[string]any{"city": "Paris"}, body["actionArgs"])
	incoming, ok := body["incomingEvent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "evt-1", incoming["id"])
}

func TestRemoteClient_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"weather service down"}`))
	}))
	defer srv.Close()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	client := registry.NewRemoteClient(registry.WithTimeout(50 * time.Millisecond))
	call := ports.ActionCall{
		BotID:        "bot1",
		ActionName:   "fetchWeather",
		ActionServer: &domain.ActionServer{ID: "remote", BaseURL: srv.URL},
	}

	err := client.Run(context.Background(), call)
	assert.ErrorContains(t, err, "weather service down")

	call.ActionServer = &domain.ActionServer{ID: "remote", BaseURL: slow.URL}
	err = client.Run(context.Background(), call)
	assert.Error(t, err)

	call.ActionServer = nil
	assert.ErrorContains(t, client.Run(context.Background(), call), "no action server")
}

func TestServerDirectory(t *testing.T) {
	dir := registry.NewServerDirectory(
		domain.ActionServer{ID: "remote", BaseURL: "http://localhost:4000"},
		domain.ActionServer{ID: "local", BaseURL: "http://localhost:3000"},
	)
	ctx := context.Background()

	srv, ok := dir.GetServer(ctx, "remote")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:4000", srv.BaseURL)

	_, ok = dir.GetServer(ctx, "nope")
	assert.False(t, ok)

	dir.Add(domain.ActionServer{ID: "remote", BaseURL: "http://actions:4000"})
	srv, _ = dir.GetServer(ctx, "remote")
	assert.Equal(t, "http://actions:4000", srv.BaseURL)

	list := dir.List()
	require.Len(t, list, 2)
	assert.Equal(t, "local", list[0].ID)
}

func TestBuiltins(t *testing.T) {
	reg := registry.NewRegistry()
	registry.RegisterBuiltins(reg)
	ctx := context.Background()
	evt := newEvent()

	set := func(scope, name string, value any) error {
		return reg.RunAction(ctx, ports.ActionCall{
			BotID:         "bot1",
			ActionName:    registry.ActionSetVariable,
			ActionArgs:    map[string]any{"type": scope, "name": name, "value": value},
			IncomingEvent: evt,
		})
	}

	require.NoError(t, set("user", "name", "Ada"))
	require.NoError(t, set("session", "topic", "billing"))
	require.NoError(t, set("temp", "answer", 42))
	require.NoError(t, set("workflow", "age", 36))
	require.NoError(t, set("bot", "greeting", "hi"))

	assert.Equal(t, "Ada", evt.State.User["name"])
	assert.Equal(t, "billing", evt.State.Session.Values["topic"])
	assert.Equal(t, 42, evt.State.Temp["answer"])
	assert.Equal(t, 36, evt.State.Workflow.Variables["age"])
	assert.Equal(t, "hi", evt.State.Bot["greeting"])

	assert.ErrorIs(t, set("galaxy", "x", 1), schema.ErrInvalidArgument)
	assert.ErrorContains(t, set("user", "", 1), "missing variable name")

	require.NoError(t, reg.RunAction(ctx, ports.ActionCall{
		ActionName:    registry.ActionSetVariable,
		ActionArgs:    map[string]any{"name": "mood", "value": "curious"},
		IncomingEvent: evt,
	}))
	assert.Equal(t, "curious", evt.State.Temp["mood"], "temp is the default scope")

	evt.State.Context.CurrentFlow = "main.flow.json"
	evt.State.Context.CurrentNode = "entry"
	require.NoError(t, reg.RunAction(ctx, ports.ActionCall{ActionName: registry.ActionResetSession, IncomingEvent: evt}))
	assert.False(t, evt.State.Context.IsActive())
	assert.Empty(t, evt.State.Session.Values)
	assert.Equal(t, "Ada", evt.State.User["name"], "user memory survives a session reset")
}

func TestRegistry_Params(t *testing.T) {
	reg := registry.NewRegistry()
	ctx := context.Background()

	var got map[string]any
	reg.Register("book", func(_ context.Context, call ports.ActionCall) error {
		got = call.ActionArgs
		return nil
	}, registry.WithParams(schema.Schema{
		"city":   {Type: schema.String(), Required: true},
		"nights": {Type: schema.Int(), Default: 1},
	}))

	params, ok := reg.Params("bot1", "book")
	require.True(t, ok)
	assert.Len(t, params, 2)

	require.NoError(t, reg.RunAction(ctx, ports.ActionCall{ActionName: "book", ActionArgs: map[string]any{"city": "Lisbon"}}))
	assert.Equal(t, map[string]any{"city": "Lisbon", "nights": 1}, got)

	got = nil
	err := reg.RunAction(ctx, ports.ActionCall{ActionName: "book", ActionArgs: map[string]any{"nights": 2.5}})
	assert.ErrorIs(t, err, schema.ErrInvalidArgument)
	assert.ErrorContains(t, err, `invalid arguments`)
	assert.Len(t, schema.ValidationErrors(err), 2)
	assert.Nil(t, got, "the action must not run with invalid arguments")
}
