// Package graph renders the flows of a bot as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// GraphOverlay contains conversation state to visualize on the graph.
type GraphOverlay struct {
	// Visited nodes, as flow#node.
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromState highlights the nodes of the stack trace and the current position.
func OverlayFromState(state *domain.State) *GraphOverlay {
	o := &GraphOverlay{}
	for _, e := range state.Stacktrace {
		o.VisitedNodes = append(o.VisitedNodes, e.Flow+"#"+e.Node)
	}
	if state.Context.IsActive() {
		o.CurrentNode = state.Context.CurrentFlow + "#" + state.Context.CurrentNode
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart, one subgraph per flow.
// It applies semantic styling:
// - Start node: ((Circle))
// - Waiting for input: [/Parallelogram/]
// - Calling an action: [[Subroutine]]
// - Default: [Rectangle]
// Transitions into another flow are dotted.
func GenerateMermaid(flows []domain.Flow, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	endUsed := false
	for _, flow := range flows {
		fmt.Fprintf(&sb, "    subgraph %s [\"%s\"]\n", sanitizeMermaidID(flow.Name), flow.Name)
		for _, node := range flow.Nodes {
			opener, closer := "[", "]"
			switch {
			case node.Name == flow.StartNode:
				opener, closer = "((", "))"
			case node.Waits():
				opener, closer = "[/", "/]"
			case callsAction(node):
				opener, closer = "[[", "]]"
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", nodeID(flow.Name, node.Name), opener, node.Name, closer)
		}
		sb.WriteString("    end\n")

		for _, node := range flow.Nodes {
			from := nodeID(flow.Name, node.Name)
			for _, t := range node.Next {
				to, jump := target(flow, t.Node)
				if to == "END" {
					endUsed = true
				}
				sb.WriteString("    " + from + " " + arrow(t.Condition, jump) + " " + to + "\n")
			}
		}
	}
	if endUsed {
		sb.WriteString("    END((\"END\"))\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, v := range overlay.VisitedNodes {
			flowName, nodeName, _ := strings.Cut(v, "#")
			id := nodeID(flowName, nodeName)
			if !visitedSet[id] {
				visitedSet[id] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}
		if overlay.CurrentNode != "" {
			flowName, nodeName, _ := strings.Cut(overlay.CurrentNode, "#")
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(flowName, nodeName))
		}
	}

	return sb.String()
}

// target returns the graph id a transition points to, and whether it leaves the flow.
func target(flow domain.Flow, to string) (string, bool) {
	to = strings.TrimSpace(to)
	switch {
	case to == "END":
		return "END", false
	case strings.HasPrefix(to, "#"):
		return sanitizeMermaidID(flow.Name) + "_return((\"return\"))", true
	case strings.Contains(to, domain.FlowSuffix):
		flowName, nodeName, _ := strings.Cut(to, "#")
		if nodeName == "" {
			return sanitizeMermaidID(flowName), flowName != flow.Name
		}
		return nodeID(flowName, nodeName), flowName != flow.Name
	default:
		return nodeID(flow.Name, to), false
	}
}

func arrow(condition string, jump bool) string {
	if condition == "" || condition == "true" {
		if jump {
			return "-.->"
		}
		return "-->"
	}
	// Escape double quotes in condition for Mermaid label
	label := strings.ReplaceAll(condition, "\"", "'")
	if jump {
		return fmt.Sprintf("-. \"%s\" .->", label)
	}
	return fmt.Sprintf("-- \"%s\" -->", label)
}

func callsAction(node domain.Node) bool {
	for _, in := range node.OnEnter {
		if !strings.HasPrefix(strings.TrimSpace(in.Fn), "say ") {
			return true
		}
	}
	return false
}

func nodeID(flowName, nodeName string) string {
	return sanitizeMermaidID(strings.TrimSuffix(flowName, domain.FlowSuffix) + "__" + nodeName)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
