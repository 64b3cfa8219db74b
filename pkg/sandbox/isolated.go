package sandbox

import (
	"context"
	"errors"

	"github.com/dop251/goja"
)

const maxCallStackSize = 1024

// IsolatedEvaluator runs each expression in a new runtime on a detached copy of
// the environment. A watchdog interrupts the runtime when the timeout elapses
// or ctx is done; the runtime is discarded either way.
type IsolatedEvaluator struct {
	cfg Config
}

func NewIsolatedEvaluator(cfg Config) *IsolatedEvaluator {
	return &IsolatedEvaluator{cfg: cfg}
}

// Evaluate implements Evaluator.
func (e *IsolatedEvaluator) Evaluate(ctx context.Context, expr string, env Env) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	detached, err := canonicalize(env)
	if err != nil {
		return false, &EvaluationError{Expr: expr, Tier: TierIsolated, Err: err}
	}

	names := params(detached)
	prog, err := compile(expr, names)
	if err != nil {
		return false, &EvaluationError{Expr: expr, Tier: TierIsolated, Err: err}
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)

	ictx, cancel := context.WithTimeout(ctx, e.cfg.timeout())
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ictx.Done():
			vm.Interrupt(timeoutMessage)
		case <-done:
		}
	}()

	ok, err := call(vm, prog, names, detached)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			return false, &EvaluationError{Expr: expr, Tier: TierIsolated, Err: ErrTimeout}
		}
		return false, &EvaluationError{Expr: expr, Tier: TierIsolated, Err: err}
	}
	return ok, nil
}
