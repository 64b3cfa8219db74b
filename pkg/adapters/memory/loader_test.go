package memory_test

import (
	"context"
	"testing"

	"github.com/lyoneil/Botpress/pkg/adapters/memory"
	"github.com/lyoneil/Botpress/pkg/domain"
	contract "github.com/lyoneil/Botpress/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLoader_Contract(t *testing.T) {
	data := map[string]string{
		"main.flow.json": `{
			"startNode": "entry",
			"nodes": [
				{"name": "entry", "onEnter": ["say #builtin_text {\"text\":\"hi\"}"], "next": [{"condition": "true", "node": "END"}]}
			]
		}`,
		"error.flow.json": `{"name": "error.flow.json", "startNode": "oops", "nodes": [{"name": "oops"}]}`,
	}

	loader, err := memory.NewFromJSON("bot1", data)
	require.NoError(t, err)

	contract.FlowLoaderContractTest(t, loader, "bot1", map[string]string{
		"main.flow.json":  "entry",
		"error.flow.json": "oops",
	})
}

func TestInMemoryLoader_AddReplaces(t *testing.T) {
	loader := memory.NewFromFlows("bot1", domain.Flow{Name: "main.flow.json", StartNode: "a"})
	loader.Add("bot1", domain.Flow{Name: "main.flow.json", StartNode: "b"})

	flows, err := loader.LoadFlows(context.Background(), "bot1")
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "b", flows[0].StartNode)
}

func TestInMemoryLoader_InvalidJSON(t *testing.T) {
	_, err := memory.NewFromJSON("bot1", map[string]string{"x.flow.json": "{"})
	assert.Error(t, err)
}
