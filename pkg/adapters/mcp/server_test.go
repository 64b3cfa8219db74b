package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyoneil/Botpress"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/dsl"
	"github.com/lyoneil/Botpress/pkg/registry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	b := dsl.New()
	main := b.Flow("main")
	main.Add("entry").
		Text("What is your name?").
		Wait().
		Do(registry.ActionSetVariable, map[string]any{"type": "user", "name": "name", "value": "{{event.preview}}"}).
		Go("greet")
	main.Add("greet").
		Text("Nice to meet you {{user.name}}").
		End()
	loader, err := b.Build("bot1")
	require.NoError(t, err)

	rt, err := botpress.New(botpress.WithFlowLoader(loader))
	require.NoError(t, err)
	return NewServer(rt, rt.Sessions(), loader, "0.1.0")
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestConverse(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleConverse(ctx, mcp.CallToolRequest{}, ConverseArgs{BotID: "bot1", UserID: "agent", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "bot1::mcp::agent", res.SessionID)
	require.Len(t, res.Responses, 1)
	assert.Equal(t, "What is your name?", res.Responses[0]["text"])
	require.NotNil(t, res.State)
	assert.Equal(t, "entry", res.State.Context.CurrentNode)

	res, err = s.handleConverse(ctx, mcp.CallToolRequest{}, ConverseArgs{BotID: "bot1", UserID: "agent", Text: "Ada"})
	require.NoError(t, err)
	require.Len(t, res.Responses, 1)
	assert.Equal(t, "Nice to meet you Ada", res.Responses[0]["text"])
	assert.Equal(t, "Ada", res.State.User["name"])

	_, err = s.handleConverse(ctx, mcp.CallToolRequest{}, ConverseArgs{BotID: "", UserID: "agent", Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestSessionTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	list, err := s.handleListSessions(ctx, mcp.CallToolRequest{}, struct{}{})
	require.NoError(t, err)
	assert.Empty(t, list.Sessions)

	_, err = s.handleConverse(ctx, mcp.CallToolRequest{}, ConverseArgs{BotID: "bot1", UserID: "agent", Text: "hi"})
	require.NoError(t, err)

	list, err = s.handleListSessions(ctx, mcp.CallToolRequest{}, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bot1::mcp::agent"}, list.Sessions)

	state, err := s.handleGetSession(ctx, mcp.CallToolRequest{}, SessionArgs{SessionID: "bot1::mcp::agent"})
	require.NoError(t, err)
	assert.Equal(t, "main.flow.json", state.Context.CurrentFlow)

	_, err = s.handleGetSession(ctx, mcp.CallToolRequest{}, SessionArgs{SessionID: "bot1::mcp::nobody"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestReloadAndGraph(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleReload(ctx, callRequest(map[string]any{"bot_id": "bot1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleReload(ctx, callRequest(map[string]any{"bot_id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGraph(ctx, callRequest(map[string]any{"bot_id": "bot1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "graph TD")
	assert.Contains(t, text.Text, "main__entry")
}
