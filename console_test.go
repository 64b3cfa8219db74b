package botpress_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyoneil/Botpress"
)

func TestConsole_Conversation(t *testing.T) {
	rt, err := botpress.New(botpress.WithFlowLoader(greetingFlows(t)))
	require.NoError(t, err)

	var out bytes.Buffer
	console := botpress.NewConsole("bot1")
	console.Input = strings.NewReader("hello\n\nAda\nquit\nignored\n")
	console.Output = &out
	console.Headless = true

	require.NoError(t, console.Run(context.Background(), rt))
	assert.Equal(t, "What is your name?\nNice to meet you Ada\nBye!\n", out.String())
}

func TestConsole_EOFWithoutNewline(t *testing.T) {
	rt, err := botpress.New(botpress.WithFlowLoader(greetingFlows(t)))
	require.NoError(t, err)

	var out bytes.Buffer
	console := botpress.NewConsole("bot1")
	console.Input = strings.NewReader("hello")
	console.Output = &out

	require.NoError(t, console.Run(context.Background(), rt))
	assert.Equal(t, "--- bot1 (console) ---\n> What is your name?\n", out.String())
}

func TestConsole_RequiresIO(t *testing.T) {
	rt, err := botpress.New(botpress.WithFlowLoader(greetingFlows(t)))
	require.NoError(t, err)

	console := botpress.NewConsole("bot1")
	assert.ErrorContains(t, console.Run(context.Background(), rt), "input reader")

	console.Input = strings.NewReader("")
	assert.ErrorContains(t, console.Run(context.Background(), rt), "output writer")
}

func TestConsole_Markdown(t *testing.T) {
	rt, err := botpress.New(botpress.WithFlowLoader(greetingFlows(t)))
	require.NoError(t, err)

	var out bytes.Buffer
	console := botpress.NewConsole("bot1")
	console.Input = strings.NewReader("hello\n")
	console.Output = &out
	console.Headless = true
	console.Markdown = func(s string) (string, error) { return "**" + s + "**\n\n", nil }

	require.NoError(t, console.Run(context.Background(), rt))
	assert.Equal(t, "**What is your name?**\n", out.String())
}
