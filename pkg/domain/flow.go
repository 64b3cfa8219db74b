package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlowSuffix is the conventional suffix of flow names.
const FlowSuffix = ".flow.json"

// NodeInstruction is one entry of a node onEnter/onReceive list.
// In flow files it is either a plain string (the fn) or an object with fn and args.
type NodeInstruction struct {
	Fn   string         `json:"fn" mapstructure:"fn"`
	Args map[string]any `json:"args,omitempty" mapstructure:"args"`
}

// UnmarshalJSON accepts both the string and the object form.
func (n *NodeInstruction) UnmarshalJSON(data []byte) error {
	var fn string
	if err := json.Unmarshal(data, &fn); err == nil {
		n.Fn = fn
		n.Args = nil
		return nil
	}
	type plain NodeInstruction
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid node instruction: %w", err)
	}
	*n = NodeInstruction(p)
	return nil
}

// NodeTransition is an outgoing edge, taken when Condition holds.
type NodeTransition struct {
	Condition string `json:"condition" mapstructure:"condition"`
	Node      string `json:"node" mapstructure:"node"`
}

// Node is a step of a flow.
// A nil OnReceive means the node does not wait for user input.
type Node struct {
	ID        string            `json:"id" mapstructure:"id"`
	Name      string            `json:"name" mapstructure:"name"`
	OnEnter   []NodeInstruction `json:"onEnter" mapstructure:"onEnter"`
	OnReceive []NodeInstruction `json:"onReceive" mapstructure:"onReceive"`
	Next      []NodeTransition  `json:"next" mapstructure:"next"`
}

// Waits reports whether the node pauses the turn until the next user message.
func (n Node) Waits() bool {
	return n.OnReceive != nil
}

// CatchAll holds transitions evaluated on every message received inside a flow.
type CatchAll struct {
	OnReceive []NodeInstruction `json:"onReceive,omitempty" mapstructure:"onReceive"`
	Next      []NodeTransition  `json:"next,omitempty" mapstructure:"next"`
}

// Flow is a dialog program: a named graph of nodes.
type Flow struct {
	Name      string    `json:"name" mapstructure:"name"`
	StartNode string    `json:"startNode" mapstructure:"startNode"`
	Nodes     []Node    `json:"nodes" mapstructure:"nodes"`
	CatchAll  *CatchAll `json:"catchAll,omitempty" mapstructure:"catchAll"`
}

// Node looks up a node by name.
func (f *Flow) Node(name string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].Name == name {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Validate checks the flow graph for structural mistakes.
func (f *Flow) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("flow name is required")
	}
	if _, ok := f.Node(f.StartNode); !ok {
		return fmt.Errorf("flow %s: start node %q: %w", f.Name, f.StartNode, ErrNodeNotFound)
	}
	seen := make(map[string]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		if n.Name == "" {
			return fmt.Errorf("flow %s: node %q has no name", f.Name, n.ID)
		}
		if seen[n.Name] {
			return fmt.Errorf("flow %s: duplicate node %q", f.Name, n.Name)
		}
		seen[n.Name] = true
	}
	return nil
}

// FlowBaseName strips the conventional suffix from a flow name.
func FlowBaseName(flow string) string {
	return strings.TrimSuffix(flow, FlowSuffix)
}
