package domain

import (
	"context"
	"time"
)

// HookType defines the category of a lifecycle notification.
type HookType string

const (
	HookDispatch    HookType = "dispatch"
	HookMiddleware  HookType = "middleware"
	HookNodeEnter   HookType = "node_enter"
	HookTransition  HookType = "transition"
	HookInstruction HookType = "instruction"
	HookEvaluation  HookType = "evaluation"
)

// HookBase contains common fields for all lifecycle notifications.
type HookBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      HookType  `json:"type"`
	EventID   string    `json:"event_id,omitempty"`
	BotID     string    `json:"bot_id,omitempty"`
}

// NewHookBase stamps a notification for an event.
func NewHookBase(t HookType, evt *Event) HookBase {
	base := HookBase{Timestamp: time.Now(), Type: t}
	if evt != nil {
		base.EventID = evt.ID
		base.BotID = evt.BotID
	}
	return base
}

// DispatchEvent reports the end of one pipeline dispatch.
type DispatchEvent struct {
	HookBase
	Direction Direction     `json:"direction"`
	Outcome   string        `json:"outcome"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// MiddlewareEvent reports the outcome of one middleware handler.
type MiddlewareEvent struct {
	HookBase
	Direction Direction     `json:"direction"`
	Name      string        `json:"name"`
	Outcome   string        `json:"outcome"`
	Duration  time.Duration `json:"duration"`
}

// NodeEvent reports entry into a node.
type NodeEvent struct {
	HookBase
	Flow string `json:"flow"`
	Node string `json:"node"`
}

// TransitionEvent reports a move in the flow graph.
type TransitionEvent struct {
	HookBase
	FromFlow string `json:"from_flow"`
	FromNode string `json:"from_node"`
	Target   string `json:"target"`
}

// InstructionEvent reports the execution of one instruction.
type InstructionEvent struct {
	HookBase
	Kind     string        `json:"kind"`
	Fn       string        `json:"fn"`
	Result   string        `json:"result"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// EvaluationEvent reports one sandboxed expression evaluation.
type EvaluationEvent struct {
	HookBase
	Tier     string        `json:"tier"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for pipeline observability.
type LifecycleHooks struct {
	OnDispatch    func(context.Context, *DispatchEvent)
	OnMiddleware  func(context.Context, *MiddlewareEvent)
	OnNodeEnter   func(context.Context, *NodeEvent)
	OnTransition  func(context.Context, *TransitionEvent)
	OnInstruction func(context.Context, *InstructionEvent)
	OnEvaluation  func(context.Context, *EvaluationEvent)
}

// Merge combines several hook sets; every non-nil callback is invoked in order.
func Merge(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		out.OnDispatch = chain(out.OnDispatch, h.OnDispatch)
		out.OnMiddleware = chain(out.OnMiddleware, h.OnMiddleware)
		out.OnNodeEnter = chain(out.OnNodeEnter, h.OnNodeEnter)
		out.OnTransition = chain(out.OnTransition, h.OnTransition)
		out.OnInstruction = chain(out.OnInstruction, h.OnInstruction)
		out.OnEvaluation = chain(out.OnEvaluation, h.OnEvaluation)
	}
	return out
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e T) {
		a(ctx, e)
		b(ctx, e)
	}
}
