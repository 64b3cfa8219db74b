package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/instruction"
	"github.com/lyoneil/Botpress/pkg/ports"
)

const (
	// DefaultEntryFlow is the flow new conversations start in.
	DefaultEntryFlow = "main.flow.json"
	// DefaultMaxSteps bounds the nodes entered during one turn.
	DefaultMaxSteps = 100

	// TargetEnd ends the conversation.
	TargetEnd = "END"
)

// Executor runs one compiled instruction. *instruction.Processor implements it.
type Executor interface {
	Execute(ctx context.Context, botID string, in instruction.Compiled, evt *domain.Event) (domain.ProcessingResult, error)
}

// Engine is the dialog state machine.
type Engine struct {
	loader   ports.FlowLoader
	executor Executor

	entryFlow string
	maxSteps  int
	hooks     domain.LifecycleHooks
	logger    *slog.Logger

	mu    sync.RWMutex
	flows map[string]map[string]*instruction.Flow
}

// Option configures the Engine.
type Option func(*Engine)

func WithEntryFlow(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.entryFlow = name
		}
	}
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine reading flows from loader.
func NewEngine(loader ports.FlowLoader, executor Executor, opts ...Option) *Engine {
	e := &Engine{
		loader:    loader,
		executor:  executor,
		entryFlow: DefaultEntryFlow,
		maxSteps:  DefaultMaxSteps,
		logger:    logging.NewNop(),
		flows:     make(map[string]map[string]*instruction.Flow),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Flows returns the compiled flows of a bot, loading them on first use.
func (e *Engine) Flows(ctx context.Context, botID string) (map[string]*instruction.Flow, error) {
	e.mu.RLock()
	flows, ok := e.flows[botID]
	e.mu.RUnlock()
	if ok {
		return flows, nil
	}
	return e.Reload(ctx, botID)
}

// Reload loads and compiles the flows of a bot again, replacing the cached ones.
// On error the previous flows stay in use.
func (e *Engine) Reload(ctx context.Context, botID string) (map[string]*instruction.Flow, error) {
	raw, err := e.loader.LoadFlows(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flows of bot %s: %w", botID, err)
	}
	flows, err := instruction.CompileAll(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compile flows of bot %s: %w", botID, err)
	}

	e.mu.Lock()
	e.flows[botID] = flows
	e.mu.Unlock()

	e.logger.Debug("flows loaded", "bot_id", botID, "count", len(flows))
	return flows, nil
}

// ProcessEvent runs one turn of the conversation the event belongs to.
// evt.State must be set; it is updated in place.
// A turn entering more than the configured maximum of nodes fails with
// domain.ErrInfiniteLoop and the conversation is reset.
func (e *Engine) ProcessEvent(ctx context.Context, evt *domain.Event) error {
	if evt.State == nil {
		return fmt.Errorf("%w: event %s has no state", domain.ErrInvalidEvent, evt.ID)
	}
	flows, err := e.Flows(ctx, evt.BotID)
	if err != nil {
		return err
	}

	t := &turn{engine: e, evt: evt, state: evt.State, flows: flows}
	t.state.Stacktrace = nil

	err = t.process(ctx)
	if errors.Is(err, domain.ErrInfiniteLoop) {
		e.logger.Warn("conversation reset", "bot_id", evt.BotID, "event_id", evt.ID, "err", err)
		t.state.ResetDialog()
	}
	return err
}
