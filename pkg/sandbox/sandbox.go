package sandbox

import (
	"context"
	"time"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// Sandbox routes every expression to the tier its Policy selects.
type Sandbox struct {
	policy   Policy
	fast     Evaluator
	isolated Evaluator
	hooks    domain.LifecycleHooks
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithPolicy replaces UnsafeCharPolicy.
func WithPolicy(p Policy) Option {
	return func(s *Sandbox) {
		s.policy = p
	}
}

// WithTiers replaces the evaluators backing each tier. Nil keeps the default.
func WithTiers(fast, isolated Evaluator) Option {
	return func(s *Sandbox) {
		if fast != nil {
			s.fast = fast
		}
		if isolated != nil {
			s.isolated = isolated
		}
	}
}

// WithLifecycleHooks reports every evaluation through OnEvaluation.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Sandbox) {
		s.hooks = hooks
	}
}

// New creates a sandbox from cfg.
func New(cfg Config, opts ...Option) *Sandbox {
	s := &Sandbox{
		policy:   UnsafeCharPolicy{},
		fast:     NewFastEvaluator(cfg),
		isolated: NewIsolatedEvaluator(cfg),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tier returns the tier expr would run in.
func (s *Sandbox) Tier(expr string) Tier {
	return s.policy.Select(expr)
}

// Evaluate implements Evaluator.
func (s *Sandbox) Evaluate(ctx context.Context, expr string, env Env) (bool, error) {
	tier := s.policy.Select(expr)
	ev := s.fast
	if tier == TierIsolated {
		ev = s.isolated
	}

	start := time.Now()
	ok, err := ev.Evaluate(ctx, expr, env)

	if s.hooks.OnEvaluation != nil {
		s.hooks.OnEvaluation(ctx, &domain.EvaluationEvent{
			HookBase: domain.NewHookBase(domain.HookEvaluation, nil),
			Tier:     string(tier),
			Duration: time.Since(start),
			Err:      err,
		})
	}
	return ok, err
}
