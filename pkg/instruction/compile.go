package instruction

import (
	"errors"
	"fmt"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// Node is a flow node with its instructions parsed.
type Node struct {
	*domain.Node
	OnEnter   []Compiled
	OnReceive []Compiled
	Next      []*Transition
}

// Flow is a flow with every node compiled.
type Flow struct {
	*domain.Flow
	Nodes           map[string]*Node
	CatchAllReceive []Compiled
	CatchAllNext    []*Transition
}

// Node looks up a compiled node by name.
func (f *Flow) Node(name string) (*Node, bool) {
	n, ok := f.Nodes[name]
	return n, ok
}

// Compile validates a flow and parses all of its instructions.
// Every parse error of the flow is reported, joined.
func Compile(flow domain.Flow) (*Flow, error) {
	if err := flow.Validate(); err != nil {
		return nil, err
	}

	f := &Flow{Flow: &flow, Nodes: make(map[string]*Node, len(flow.Nodes))}
	var errs []error

	compileList := func(where string, typ domain.InstructionType, list []domain.NodeInstruction) []Compiled {
		out := make([]Compiled, 0, len(list))
		for _, ni := range list {
			c, err := Parse(domain.Instruction{Type: typ, Fn: ni.Fn, Args: ni.Args})
			if err != nil {
				errs = append(errs, fmt.Errorf("flow %s, %s: %w", flow.Name, where, err))
				continue
			}
			out = append(out, c)
		}
		return out
	}
	compileNext := func(list []domain.NodeTransition) []*Transition {
		out := make([]*Transition, 0, len(list))
		for _, nt := range list {
			out = append(out, parseTransition(domain.Instruction{
				Type: domain.InstructionTransition,
				Fn:   nt.Condition,
				Node: nt.Node,
			}))
		}
		return out
	}

	for i := range flow.Nodes {
		n := &flow.Nodes[i]
		cn := &Node{
			Node:    n,
			OnEnter: compileList("node "+n.Name+" onEnter", domain.InstructionOnEnter, n.OnEnter),
			Next:    compileNext(n.Next),
		}
		if n.OnReceive != nil {
			cn.OnReceive = compileList("node "+n.Name+" onReceive", domain.InstructionOnReceive, n.OnReceive)
		}
		f.Nodes[n.Name] = cn
	}

	if flow.CatchAll != nil {
		f.CatchAllReceive = compileList("catchAll onReceive", domain.InstructionOnReceive, flow.CatchAll.OnReceive)
		f.CatchAllNext = compileNext(flow.CatchAll.Next)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f, nil
}

// CompileAll compiles a set of flows, keyed by name.
func CompileAll(flows []domain.Flow) (map[string]*Flow, error) {
	out := make(map[string]*Flow, len(flows))
	var errs []error
	for _, flow := range flows {
		f, err := Compile(flow)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[flow.Name] = f
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
