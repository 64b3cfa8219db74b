package dsl_test

import (
	"context"
	"testing"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/dsl"
	"github.com/lyoneil/Botpress/pkg/instruction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	b := dsl.New()

	main := b.Flow("main")
	main.Add("entry").
		Text("Hello, DSL!").
		Wait().
		Do("builtin/setVariable", map[string]any{"type": "user", "name": "name", "value": "{{event.preview}}"}).
		Go("greet")
	main.Add("greet").
		Say("#builtin_text", map[string]any{"text": "Nice to meet you, {{user.name}}!"}).
		Branch("event.preview === 'help'", "help.flow.json").
		End()
	main.CatchAll("event.preview === 'bye'", "END")

	b.Flow("help").Add("start").Text("Some help").Return("")

	loader, err := b.Build("bot1")
	require.NoError(t, err)

	flows, err := loader.LoadFlows(context.Background(), "bot1")
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "help.flow.json", flows[0].Name)

	mainFlow := flows[1]
	assert.Equal(t, "main.flow.json", mainFlow.Name)
	assert.Equal(t, "entry", mainFlow.StartNode)

	entry, ok := mainFlow.Node("entry")
	require.True(t, ok)
	assert.True(t, entry.Waits())
	assert.Equal(t, []domain.NodeInstruction{{Fn: "say @builtin_text", Args: map[string]any{"text": "Hello, DSL!"}}}, entry.OnEnter)
	require.Len(t, entry.OnReceive, 1)
	assert.Equal(t, "builtin/setVariable", entry.OnReceive[0].Fn)
	assert.Equal(t, []domain.NodeTransition{{Condition: "true", Node: "greet"}}, entry.Next)

	greet, ok := mainFlow.Node("greet")
	require.True(t, ok)
	assert.False(t, greet.Waits())
	assert.Equal(t, "say @builtin_text", greet.OnEnter[0].Fn)
	assert.Len(t, greet.Next, 2)
	assert.Equal(t, "END", greet.Next[1].Node)

	require.NotNil(t, mainFlow.CatchAll)
	assert.Equal(t, "END", mainFlow.CatchAll.Next[0].Node)

	_, err = instruction.CompileAll(flows)
	assert.NoError(t, err, "built flows must compile")
}

func TestBuilder_WaitWithoutReceive(t *testing.T) {
	b := dsl.New()
	b.Flow("main.flow.json").Add("ask").Text("?").Wait()

	flows, err := b.Flows()
	require.NoError(t, err)
	node, _ := flows[0].Node("ask")
	assert.True(t, node.Waits())
	assert.Empty(t, node.OnReceive)
}

func TestBuilder_InvalidStart(t *testing.T) {
	b := dsl.New()
	b.Flow("main").Start("missing").Add("a").End()

	_, err := b.Build("bot1")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestBuilder_AddIsIdempotent(t *testing.T) {
	b := dsl.New()
	f := b.Flow("main")
	first := f.Add("a")
	assert.Same(t, first, f.Add("a"))
	assert.Same(t, f, b.Flow("main.flow.json"))
}
