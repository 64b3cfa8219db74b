package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
)

// FlowLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.FlowLoader.
// expected maps flow names to their start node for the given bot.
func FlowLoaderContractTest(t *testing.T, loader ports.FlowLoader, botID string, expected map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadFlows_Success", func(t *testing.T) {
		flows, err := loader.LoadFlows(ctx, botID)
		if err != nil {
			t.Fatalf("unexpected error loading flows of %s: %v", botID, err)
		}
		if len(flows) != len(expected) {
			t.Errorf("expected %d flows, got %d", len(expected), len(flows))
		}

		lookup := make(map[string]domain.Flow, len(flows))
		for _, f := range flows {
			lookup[f.Name] = f
		}
		for name, start := range expected {
			f, ok := lookup[name]
			if !ok {
				t.Errorf("flow %s missing from list", name)
				continue
			}
			if f.StartNode != start {
				t.Errorf("flow %s: start node mismatch. got %q, want %q", name, f.StartNode, start)
			}
			if _, ok := f.Node(f.StartNode); !ok {
				t.Errorf("flow %s: start node %q is not defined", name, f.StartNode)
			}
		}
	})

	t.Run("LoadFlows_UnknownBot", func(t *testing.T) {
		_, err := loader.LoadFlows(ctx, "non-existent-bot")
		if !errors.Is(err, domain.ErrFlowNotFound) {
			t.Errorf("expected ErrFlowNotFound for unknown bot, got %v", err)
		}
	})
}
