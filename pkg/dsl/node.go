package dsl

import (
	"strings"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
// Instructions go to onEnter until Wait is called, and to onReceive after.
type NodeBuilder struct {
	node    domain.Node
	waiting bool
}

func (n *NodeBuilder) add(in domain.NodeInstruction) *NodeBuilder {
	if n.waiting {
		n.node.OnReceive = append(n.node.OnReceive, in)
	} else {
		n.node.OnEnter = append(n.node.OnEnter, in)
	}
	return n
}

// Say renders content of the given type with args and sends it to the user.
func (n *NodeBuilder) Say(contentType string, args map[string]any) *NodeBuilder {
	contentType = strings.TrimLeft(contentType, "#@")
	return n.add(domain.NodeInstruction{Fn: "say @" + contentType, Args: args})
}

// Text is a shortcut for saying builtin text.
func (n *NodeBuilder) Text(text string) *NodeBuilder {
	return n.Say("builtin_text", map[string]any{"text": text})
}

// Do calls an action.
func (n *NodeBuilder) Do(action string, args map[string]any) *NodeBuilder {
	return n.add(domain.NodeInstruction{Fn: action, Args: args})
}

// Wait makes the node pause the turn until the next user message.
func (n *NodeBuilder) Wait() *NodeBuilder {
	n.waiting = true
	if n.node.OnReceive == nil {
		n.node.OnReceive = []domain.NodeInstruction{}
	}
	return n
}

// Go adds an unconditional transition to the target.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	return n.Branch("true", target)
}

// Branch adds a conditional transition to the target.
func (n *NodeBuilder) Branch(condition string, target string) *NodeBuilder {
	n.node.Next = append(n.node.Next, domain.NodeTransition{
		Condition: condition,
		Node:      target,
	})
	return n
}

// End adds an unconditional transition ending the conversation.
func (n *NodeBuilder) End() *NodeBuilder {
	return n.Go("END")
}

// Return adds an unconditional transition back to the calling flow.
// An empty node resumes the calling node.
func (n *NodeBuilder) Return(node string) *NodeBuilder {
	return n.Go("#" + node)
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}
