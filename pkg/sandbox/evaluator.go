package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout is the wall-clock budget of an isolated evaluation.
const DefaultTimeout = 5000 * time.Millisecond

// timeoutMessage is the interrupt value handed to goja.
const timeoutMessage = "RuntimeError: timeout"

// ErrTimeout is matched by evaluations interrupted by the isolated tier watchdog.
var ErrTimeout = errors.New("expression evaluation timed out")

// Env holds the variables visible to an expression, by name.
type Env map[string]any

// Evaluator evaluates one expression and returns its JavaScript truthiness.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, env Env) (bool, error)
}

// Tier names an execution strategy.
type Tier string

const (
	TierFast     Tier = "fast"
	TierIsolated Tier = "isolated"
)

// Config controls the sandbox. It is passed explicitly to every evaluator.
type Config struct {
	// DisableSandbox lets the fast tier read the caller's environment directly
	// instead of a detached copy. Unsafe expressions are isolated regardless.
	DisableSandbox bool `yaml:"disable" env:"DISABLE"`

	// Timeout bounds isolated evaluations. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// EvaluationError reports an expression that failed for a reason other than a TypeError.
type EvaluationError struct {
	Expr string
	Tier Tier
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s evaluation of %q failed: %v", e.Tier, e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// params returns the env names usable as function parameters, sorted.
func params(env Env) []string {
	names := make([]string, 0, len(env))
	for k := range env {
		if identifier.MatchString(k) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// wrap builds the function expression evaluated by both tiers.
func wrap(expr string, names []string) string {
	return "(function(" + strings.Join(names, ", ") + ") {\n" +
		"  try { return " + strings.TrimSpace(expr) + "; }\n" +
		"  catch (err) { if (err instanceof TypeError) { return false; } throw err; }\n" +
		"})"
}

func compile(expr string, names []string) (*goja.Program, error) {
	return goja.Compile("expression", wrap(expr, names), true)
}

// call runs the compiled wrapper in vm with the env values as arguments.
func call(vm *goja.Runtime, prog *goja.Program, names []string, env Env) (bool, error) {
	v, err := vm.RunProgram(prog)
	if err != nil {
		return false, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return false, errors.New("compiled expression is not callable")
	}

	args := make([]goja.Value, len(names))
	for i, name := range names {
		args[i] = vm.ToValue(env[name])
	}

	res, err := fn(goja.Undefined(), args...)
	if err != nil {
		return false, err
	}
	return res.ToBoolean(), nil
}

// canonicalize detaches env from the caller through a JSON round trip,
// leaving only plain maps, slices and scalars.
func canonicalize(env Env) (Env, error) {
	js, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sandbox environment: %w", err)
	}
	var out Env
	if err := json.Unmarshal(js, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sandbox environment: %w", err)
	}
	return out, nil
}
