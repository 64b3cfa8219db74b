package sandbox

import (
	"context"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// FastEvaluator runs trusted expressions from a cache of compiled programs.
// It has no watchdog and must only see expressions a Policy routed to TierFast.
// Each evaluation gets its own runtime, so changes an expression makes to the
// globals or builtin prototypes are not seen by later evaluations.
type FastEvaluator struct {
	detach   bool
	programs sync.Map // string -> *goja.Program
}

// NewFastEvaluator creates a fast evaluator. Unless cfg.DisableSandbox is set,
// the environment is detached before it reaches the runtime.
func NewFastEvaluator(cfg Config) *FastEvaluator {
	return &FastEvaluator{detach: !cfg.DisableSandbox}
}

// Evaluate implements Evaluator.
func (f *FastEvaluator) Evaluate(ctx context.Context, expr string, env Env) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if f.detach {
		detached, err := canonicalize(env)
		if err != nil {
			return false, &EvaluationError{Expr: expr, Tier: TierFast, Err: err}
		}
		env = detached
	}

	names := params(env)
	prog, err := f.program(expr, names)
	if err != nil {
		return false, &EvaluationError{Expr: expr, Tier: TierFast, Err: err}
	}

	ok, err := call(goja.New(), prog, names, env)
	if err != nil {
		return false, &EvaluationError{Expr: expr, Tier: TierFast, Err: err}
	}
	return ok, nil
}

func (f *FastEvaluator) program(expr string, names []string) (*goja.Program, error) {
	key := strings.Join(names, ",") + "\x00" + expr
	if p, ok := f.programs.Load(key); ok {
		return p.(*goja.Program), nil
	}
	p, err := compile(expr, names)
	if err != nil {
		return nil, err
	}
	actual, _ := f.programs.LoadOrStore(key, p)
	return actual.(*goja.Program), nil
}
