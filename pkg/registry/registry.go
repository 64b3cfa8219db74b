package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
	"github.com/lyoneil/Botpress/pkg/schema"
)

// ActionFunc is a locally implemented action.
// It may mutate call.IncomingEvent.State; the dialog engine persists it.
type ActionFunc func(ctx context.Context, call ports.ActionCall) error

// action is a registered ActionFunc and the parameters it declares.
type action struct {
	fn     ActionFunc
	params schema.Schema
}

// ActionOption configures a registered action.
type ActionOption func(*action)

// WithParams declares the parameters of an action. Calls are checked against
// them and absent arguments take their default before the action runs.
func WithParams(params schema.Schema) ActionOption {
	return func(a *action) {
		a.params = params
	}
}

func newAction(fn ActionFunc, opts []ActionOption) action {
	a := action{fn: fn}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// Registry holds the actions of every bot and implements ports.ActionRegistry.
// Actions registered globally are visible to all bots; bot actions shadow them.
type Registry struct {
	mu     sync.RWMutex
	global map[string]action
	bots   map[string]map[string]action

	remote *RemoteClient
	logger *slog.Logger
}

type Option func(*Registry)

// WithRemote sets the client used for actions hosted on action servers.
func WithRemote(c *RemoteClient) Option {
	return func(r *Registry) {
		r.remote = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		global: make(map[string]action),
		bots:   make(map[string]map[string]action),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.remote == nil {
		r.remote = NewRemoteClient()
	}
	return r
}

// Register adds an action visible to every bot.
// If an action with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn ActionFunc, opts ...ActionOption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global[name] = newAction(fn, opts)
}

// RegisterForBot adds an action visible to one bot.
func (r *Registry) RegisterForBot(botID, name string, fn ActionFunc, opts ...ActionOption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions, ok := r.bots[botID]
	if !ok {
		actions = make(map[string]action)
		r.bots[botID] = actions
	}
	actions[name] = newAction(fn, opts)
}

// Unregister removes a bot action, or a global one when botID is empty. Idempotent.
func (r *Registry) Unregister(botID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := r.global
	if botID != "" {
		actions = r.bots[botID]
	}
	if _, ok := actions[name]; !ok {
		return false
	}
	delete(actions, name)
	return true
}

func (r *Registry) lookup(botID, name string) (action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.bots[botID][name]; ok {
		return a, true
	}
	a, ok := r.global[name]
	return a, ok
}

// Params returns the parameters an action declares, nil when it declares none.
func (r *Registry) Params(botID, name string) (schema.Schema, bool) {
	a, ok := r.lookup(botID, name)
	return a.params, ok
}

// HasAction implements ports.ActionRegistry.
func (r *Registry) HasAction(ctx context.Context, botID, name string) (bool, error) {
	_, ok := r.lookup(botID, name)
	return ok, nil
}

// Names lists the actions a bot can run locally, sorted.
func (r *Registry) Names(botID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.global)+len(r.bots[botID]))
	for name := range r.global {
		seen[name] = true
	}
	for name := range r.bots[botID] {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunAction implements ports.ActionRegistry. Calls carrying an action server
// are sent to it; the others run locally.
func (r *Registry) RunAction(ctx context.Context, call ports.ActionCall) error {
	if call.ActionServer != nil {
		r.logger.Debug("running remote action", "bot_id", call.BotID, "action", call.ActionName, "server", call.ActionServer.ID)
		return r.remote.Run(ctx, call)
	}

	a, ok := r.lookup(call.BotID, call.ActionName)
	if !ok {
		return fmt.Errorf("action %q: %w", call.ActionName, domain.ErrActionNotFound)
	}
	if a.params != nil {
		args, err := schema.Apply(a.params, call.ActionArgs)
		if err != nil {
			return fmt.Errorf("action %q: invalid arguments: %w", call.ActionName, err)
		}
		call.ActionArgs = args
	}
	return run(ctx, a.fn, call)
}

func run(ctx context.Context, fn ActionFunc, call ports.ActionCall) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("action %q panicked: %v", call.ActionName, v)
		}
	}()
	return fn(ctx, call)
}
