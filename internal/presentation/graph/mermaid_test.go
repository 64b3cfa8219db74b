package graph_test

import (
	"strings"
	"testing"

	"github.com/lyoneil/Botpress/internal/presentation/graph"
	"github.com/lyoneil/Botpress/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		flows    []domain.Flow
		contains []string
	}{
		{
			name: "Node Shapes",
			flows: []domain.Flow{{
				Name:      "main.flow.json",
				StartNode: "entry",
				Nodes: []domain.Node{
					{Name: "entry"},
					{Name: "ask", OnReceive: []domain.NodeInstruction{}},
					{Name: "lookup", OnEnter: []domain.NodeInstruction{{Fn: "crm/lookup"}}},
					{Name: "thanks", OnEnter: []domain.NodeInstruction{{Fn: "say #builtin_text"}}},
				},
			}},
			contains: []string{
				"subgraph main_flow_json [\"main.flow.json\"]",
				"main__entry((\"entry\"))",
				"main__ask[/\"ask\"/]",
				"main__lookup[[\"lookup\"]]",
				"main__thanks[\"thanks\"]",
			},
		},
		{
			name: "Transitions",
			flows: []domain.Flow{{
				Name:      "main.flow.json",
				StartNode: "entry",
				Nodes: []domain.Node{
					{Name: "entry", Next: []domain.NodeTransition{
						{Condition: "event.nlu.intent.name === \"buy\"", Node: "buy-now"},
						{Condition: "true", Node: "skills/choice.flow.json#ask"},
					}},
					{Name: "buy-now", Next: []domain.NodeTransition{{Condition: "true", Node: "END"}}},
				},
			}},
			contains: []string{
				"main__entry -- \"event.nlu.intent.name === 'buy'\" --> main__buy_now",
				"main__entry -.-> skills_choice__ask",
				"main__buy_now --> END",
				"END((\"END\"))",
			},
		},
		{
			name: "Return To Caller",
			flows: []domain.Flow{{
				Name:      "skills/choice.flow.json",
				StartNode: "ask",
				Nodes: []domain.Node{
					{Name: "ask", Next: []domain.NodeTransition{{Condition: "temp.done", Node: "#"}}},
				},
			}},
			contains: []string{
				"skills_choice__ask -. \"temp.done\" .-> skills_choice_flow_json_return((\"return\"))",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.flows, nil)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() missing %q\nGot:\n%s", want, got)
				}
			}
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	flows := []domain.Flow{{
		Name:      "main.flow.json",
		StartNode: "entry",
		Nodes: []domain.Node{
			{Name: "entry", Next: []domain.NodeTransition{{Condition: "true", Node: "ask"}}},
			{Name: "ask", OnReceive: []domain.NodeInstruction{}},
		},
	}}
	state := domain.NewState()
	state.Context.CurrentFlow = "main.flow.json"
	state.Context.CurrentNode = "ask"
	state.Stacktrace = []domain.StackEntry{
		{Flow: "main.flow.json", Node: "entry"},
		{Flow: "main.flow.json", Node: "ask"},
		{Flow: "main.flow.json", Node: "ask"},
	}

	got := graph.GenerateMermaid(flows, graph.OverlayFromState(state))

	for _, want := range []string{
		"classDef visited",
		"class main__entry visited;",
		"class main__ask current;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("GenerateMermaid() missing %q\nGot:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "class main__ask visited;"); n != 1 {
		t.Errorf("visited nodes must be listed once, got %d", n)
	}
}
