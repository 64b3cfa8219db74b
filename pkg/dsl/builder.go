package dsl

import (
	"fmt"
	"strings"

	"github.com/lyoneil/Botpress/pkg/adapters/memory"
	"github.com/lyoneil/Botpress/pkg/domain"
)

// Builder manages the construction of the flows of one bot.
type Builder struct {
	flows map[string]*FlowBuilder
	order []string
}

// New creates a new flow builder.
func New() *Builder {
	return &Builder{
		flows: make(map[string]*FlowBuilder),
	}
}

// Flow creates a flow, adding the conventional suffix when it is missing.
// If the flow already exists, it returns the existing builder.
func (b *Builder) Flow(name string) *FlowBuilder {
	if !strings.HasSuffix(name, domain.FlowSuffix) {
		name += domain.FlowSuffix
	}
	if fb, ok := b.flows[name]; ok {
		return fb
	}
	fb := &FlowBuilder{name: name, nodes: make(map[string]*NodeBuilder)}
	b.flows[name] = fb
	b.order = append(b.order, name)
	return fb
}

// Flows returns the flows built so far, validated.
func (b *Builder) Flows() ([]domain.Flow, error) {
	out := make([]domain.Flow, 0, len(b.order))
	for _, name := range b.order {
		f := b.flows[name].Build()
		if err := f.Validate(); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Build compiles the flows into a memory loader serving them for botID.
func (b *Builder) Build(botID string) (*memory.Loader, error) {
	flows, err := b.Flows()
	if err != nil {
		return nil, fmt.Errorf("failed to build flows: %w", err)
	}
	return memory.NewFromFlows(botID, flows...), nil
}

// FlowBuilder configures one flow.
type FlowBuilder struct {
	name     string
	start    string
	nodes    map[string]*NodeBuilder
	order    []string
	catchAll *domain.CatchAll
}

// Add creates a node in the flow. The first node added is the start node
// unless Start says otherwise.
// If the node already exists, it returns the existing builder.
func (f *FlowBuilder) Add(name string) *NodeBuilder {
	if nb, ok := f.nodes[name]; ok {
		return nb
	}
	nb := &NodeBuilder{node: domain.Node{ID: name, Name: name}}
	f.nodes[name] = nb
	f.order = append(f.order, name)
	if f.start == "" {
		f.start = name
	}
	return nb
}

// Start sets the start node.
func (f *FlowBuilder) Start(name string) *FlowBuilder {
	f.start = name
	return f
}

// CatchAll adds a transition evaluated on every message received in the flow.
func (f *FlowBuilder) CatchAll(condition, target string) *FlowBuilder {
	if f.catchAll == nil {
		f.catchAll = &domain.CatchAll{}
	}
	f.catchAll.Next = append(f.catchAll.Next, domain.NodeTransition{Condition: condition, Node: target})
	return f
}

// Build returns the underlying domain.Flow.
func (f *FlowBuilder) Build() domain.Flow {
	flow := domain.Flow{
		Name:      f.name,
		StartNode: f.start,
		Nodes:     make([]domain.Node, 0, len(f.order)),
	}
	for _, name := range f.order {
		flow.Nodes = append(flow.Nodes, f.nodes[name].Build())
	}
	if f.catchAll != nil {
		ca := *f.catchAll
		flow.CatchAll = &ca
	}
	return flow
}
