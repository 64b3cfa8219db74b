package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/instruction"
)

// position is a node of a flow. resume skips onEnter and goes straight
// to the node transitions, for returns to a calling flow.
type position struct {
	flow   *instruction.Flow
	node   *instruction.Node
	resume bool
}

// turn is the processing of one event.
type turn struct {
	engine *Engine
	evt    *domain.Event
	state  *domain.State
	flows  map[string]*instruction.Flow
	steps  int
}

func (t *turn) process(ctx context.Context) error {
	cur, ok := t.current()
	if !ok {
		start, err := t.start(t.engine.entryFlow, "")
		if err != nil {
			return err
		}
		return t.walk(ctx, start)
	}

	t.state.PushStack(cur.flow.Name, cur.node.Name)
	target, err := t.receive(ctx, cur)
	if err != nil {
		return err
	}
	if target == "" {
		if cur.node.Waits() {
			t.state.Context.Queue = pending(cur.node)
		}
		return nil
	}
	return t.follow(ctx, cur, target)
}

// current returns the node the conversation waits on. A position that no
// longer exists in the flows restarts the conversation.
func (t *turn) current() (position, bool) {
	dc := t.state.Context
	if !dc.IsActive() {
		return position{}, false
	}
	flow, ok := t.flows[dc.CurrentFlow]
	if ok {
		if node, ok := flow.Node(dc.CurrentNode); ok {
			return position{flow: flow, node: node}, true
		}
	}
	t.engine.logger.Warn("conversation position no longer exists, restarting",
		"bot_id", t.evt.BotID, "event_id", t.evt.ID, "flow", dc.CurrentFlow, "node", dc.CurrentNode)
	t.state.ResetDialog()
	return position{}, false
}

func (t *turn) start(flowName, nodeName string) (position, error) {
	flow, ok := t.flows[flowName]
	if !ok {
		return position{}, fmt.Errorf("flow %q: %w", flowName, domain.ErrFlowNotFound)
	}
	if nodeName == "" {
		nodeName = flow.StartNode
	}
	node, ok := flow.Node(nodeName)
	if !ok {
		return position{}, fmt.Errorf("flow %s, node %q: %w", flowName, nodeName, domain.ErrNodeNotFound)
	}
	return position{flow: flow, node: node}, nil
}

// receive resumes a waiting node with the incoming message.
func (t *turn) receive(ctx context.Context, pos position) (string, error) {
	t.state.Context.Queue = nil

	if target, err := t.execute(ctx, pos.flow.CatchAllReceive); err != nil || target != "" {
		return target, err
	}
	if target, err := t.transitions(ctx, pos.flow.CatchAllNext); err != nil || target != "" {
		return target, err
	}
	if target, err := t.execute(ctx, pos.node.OnReceive); err != nil || target != "" {
		return target, err
	}
	return t.transitions(ctx, pos.node.Next)
}

// walk enters pos and keeps following transitions until a node waits,
// no transition holds, or the conversation ends.
func (t *turn) walk(ctx context.Context, pos position) error {
	for {
		t.steps++
		if t.steps > t.engine.maxSteps {
			return fmt.Errorf("%w: more than %d nodes entered in one turn, last %s#%s",
				domain.ErrInfiniteLoop, t.engine.maxSteps, pos.flow.Name, pos.node.Name)
		}

		target, err := t.enter(ctx, pos)
		if err != nil || target == "" {
			return err
		}

		next, end, err := t.resolve(pos, target)
		if err != nil {
			return err
		}
		t.transitioned(ctx, pos, target)
		if end {
			t.end()
			return nil
		}
		pos = next
	}
}

// follow applies a target obtained while resuming pos.
func (t *turn) follow(ctx context.Context, from position, target string) error {
	next, end, err := t.resolve(from, target)
	if err != nil {
		return err
	}
	t.transitioned(ctx, from, target)
	if end {
		t.end()
		return nil
	}
	return t.walk(ctx, next)
}

func (t *turn) enter(ctx context.Context, pos position) (string, error) {
	if pos.resume {
		return t.transitions(ctx, pos.node.Next)
	}

	dc := &t.state.Context
	dc.PreviousFlow, dc.PreviousNode = dc.CurrentFlow, dc.CurrentNode
	dc.CurrentFlow, dc.CurrentNode = pos.flow.Name, pos.node.Name
	dc.Queue = nil
	t.state.PushStack(pos.flow.Name, pos.node.Name)

	t.engine.logger.Debug("entering node", "bot_id", t.evt.BotID, "event_id", t.evt.ID, "flow", pos.flow.Name, "node", pos.node.Name)
	if t.engine.hooks.OnNodeEnter != nil {
		t.engine.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			HookBase: domain.NewHookBase(domain.HookNodeEnter, t.evt),
			Flow:     pos.flow.Name,
			Node:     pos.node.Name,
		})
	}

	if target, err := t.execute(ctx, pos.node.OnEnter); err != nil || target != "" {
		return target, err
	}
	if pos.node.Waits() {
		dc.Queue = pending(pos.node)
		return "", nil
	}
	return t.transitions(ctx, pos.node.Next)
}

// execute runs instructions in order; the first transition interrupts them.
func (t *turn) execute(ctx context.Context, list []instruction.Compiled) (string, error) {
	for _, in := range list {
		res, err := t.engine.executor.Execute(ctx, t.evt.BotID, in, t.evt)
		if err != nil {
			return "", err
		}
		if res.IsTransition() {
			return res.Target(), nil
		}
	}
	return "", nil
}

// transitions returns the target of the first transition that holds.
func (t *turn) transitions(ctx context.Context, list []*instruction.Transition) (string, error) {
	for _, tr := range list {
		res, err := t.engine.executor.Execute(ctx, t.evt.BotID, tr, t.evt)
		if err != nil {
			return "", err
		}
		if res.IsTransition() {
			return res.Target(), nil
		}
	}
	return "", nil
}

// resolve turns a target into the next position. end is set for END, and
// for returns with nowhere to return to.
func (t *turn) resolve(from position, target string) (next position, end bool, err error) {
	target = strings.TrimSpace(target)
	switch {
	case target == TargetEnd:
		return position{}, true, nil

	case strings.HasPrefix(target, "#"):
		return t.back(strings.TrimPrefix(target, "#"))

	case strings.Contains(target, domain.FlowSuffix):
		flowName, nodeName, _ := strings.Cut(target, "#")
		next, err := t.start(flowName, nodeName)
		if err != nil {
			return position{}, false, err
		}
		if flowName != from.flow.Name {
			t.state.Context.JumpPoints = append(t.state.Context.JumpPoints, domain.JumpPoint{
				Flow: from.flow.Name,
				Node: from.node.Name,
			})
		}
		return next, false, nil

	default:
		node, ok := from.flow.Node(target)
		if !ok {
			return position{}, false, fmt.Errorf("flow %s, node %q: %w", from.flow.Name, target, domain.ErrNodeNotFound)
		}
		return position{flow: from.flow, node: node}, false, nil
	}
}

// back pops the last jump point. An empty node resumes the caller node
// transitions instead of entering a node.
func (t *turn) back(nodeName string) (position, bool, error) {
	dc := &t.state.Context
	if len(dc.JumpPoints) == 0 {
		t.engine.logger.Debug("no calling flow to return to, ending conversation", "bot_id", t.evt.BotID, "event_id", t.evt.ID)
		return position{}, true, nil
	}
	jp := dc.JumpPoints[len(dc.JumpPoints)-1]
	dc.JumpPoints = dc.JumpPoints[:len(dc.JumpPoints)-1]

	if nodeName != "" {
		next, err := t.start(jp.Flow, nodeName)
		return next, false, err
	}
	next, err := t.start(jp.Flow, jp.Node)
	if err != nil {
		return position{}, false, err
	}
	next.resume = true
	dc.CurrentFlow, dc.CurrentNode = next.flow.Name, next.node.Name
	return next, false, nil
}

func (t *turn) transitioned(ctx context.Context, from position, target string) {
	t.engine.logger.Debug("transition", "bot_id", t.evt.BotID, "event_id", t.evt.ID,
		"flow", from.flow.Name, "node", from.node.Name, "target", target)
	if t.engine.hooks.OnTransition != nil {
		t.engine.hooks.OnTransition(ctx, &domain.TransitionEvent{
			HookBase: domain.NewHookBase(domain.HookTransition, t.evt),
			FromFlow: from.flow.Name,
			FromNode: from.node.Name,
			Target:   target,
		})
	}
}

// end closes the conversation. The next message starts over in the entry flow.
func (t *turn) end() {
	t.engine.logger.Debug("conversation ended", "bot_id", t.evt.BotID, "event_id", t.evt.ID)
	t.state.ResetDialog()
}

// pending mirrors what a waiting node will run on the next message.
func pending(node *instruction.Node) []domain.Instruction {
	queue := []domain.Instruction{{Type: domain.InstructionWait}}
	for _, in := range node.OnReceive {
		queue = append(queue, in.Raw())
	}
	for _, tr := range node.Next {
		queue = append(queue, tr.Raw())
	}
	return queue
}
