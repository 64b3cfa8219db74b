package instruction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/sandbox"
)

const lastNodePrefix = "lastNode"

// TransitionStrategy evaluates the condition of an outgoing edge.
type TransitionStrategy struct {
	evaluator sandbox.Evaluator
	logger    *slog.Logger
}

// NewTransitionStrategy evaluates conditions with evaluator, typically a *sandbox.Sandbox.
func NewTransitionStrategy(evaluator sandbox.Evaluator, logger *slog.Logger) *TransitionStrategy {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TransitionStrategy{evaluator: evaluator, logger: logger}
}

// ProcessInstruction implements Strategy for *Transition.
func (s *TransitionStrategy) ProcessInstruction(ctx context.Context, botID string, in Compiled, evt *domain.Event) (domain.ProcessingResult, error) {
	t, ok := in.(*Transition)
	if !ok {
		return domain.NoTransition(), fmt.Errorf("transition strategy cannot process %T", in)
	}

	holds, err := s.holds(ctx, t, evt)
	if err != nil {
		return domain.NoTransition(), err
	}
	if !holds {
		return domain.NoTransition(), nil
	}

	cond := t.Condition
	if cond == "true" {
		cond = "always"
	}
	s.logger.Debug("eval transition", "bot_id", botID, "target", evt.Target, "condition", cond, "node", t.Target)
	return domain.TransitionTo(t.Target), nil
}

func (s *TransitionStrategy) holds(ctx context.Context, t *Transition, evt *domain.Event) (bool, error) {
	state := stateOf(evt)

	switch {
	case t.Condition == "true":
		return true, nil
	case strings.HasPrefix(t.Condition, lastNodePrefix):
		prev, ok := state.PreviousNode()
		if !ok {
			return false, nil
		}
		return t.Condition == lastNodePrefix+"="+prev.Node, nil
	}

	expr := RewriteThisNode(t.expr, state.Context)

	env, err := CommonArgs(evt, nil)
	if err != nil {
		return false, err
	}
	return s.evaluator.Evaluate(ctx, expr, env)
}
