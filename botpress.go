package botpress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/pkg/adapters/memory"
	"github.com/lyoneil/Botpress/pkg/dialog"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/instruction"
	"github.com/lyoneil/Botpress/pkg/middleware"
	"github.com/lyoneil/Botpress/pkg/ports"
	"github.com/lyoneil/Botpress/pkg/realtime"
	"github.com/lyoneil/Botpress/pkg/registry"
	"github.com/lyoneil/Botpress/pkg/render"
	"github.com/lyoneil/Botpress/pkg/sandbox"
	"github.com/lyoneil/Botpress/pkg/session"
)

// WebChannel is the channel whose replies are pushed to visitors over the
// realtime hub.
const WebChannel = "web"

// Runtime is the high-level entry point of the pipeline.
// It wires the middleware chains, the dialog engine and the session manager.
type Runtime struct {
	store    ports.StateStore
	locker   ports.DistributedLocker
	loader   ports.FlowLoader
	actions  *registry.Registry
	servers  ports.ActionServerResolver
	renderer ports.ContentRenderer

	sandboxCfg sandbox.Config
	evaluator  sandbox.Evaluator

	entryFlow         string
	errorFlow         string
	maxSteps          int
	lastMessages      int
	middlewareTimeout time.Duration
	lockTTL           time.Duration

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	hub    *realtime.Hub

	mu      sync.RWMutex
	senders map[string]ports.Sender

	pipeline *middleware.Pipeline
	sessions *session.Manager
	engine   *dialog.Engine
}

// Option defines a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithStore sets where dialog session states are persisted (default: in memory).
func WithStore(store ports.StateStore) Option {
	return func(r *Runtime) {
		r.store = store
	}
}

// WithLocker serializes conversations across replicas sharing the store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(r *Runtime) {
		r.locker = locker
	}
}

// WithLockTTL bounds how long a distributed lock survives a crashed replica.
func WithLockTTL(ttl time.Duration) Option {
	return func(r *Runtime) {
		r.lockTTL = ttl
	}
}

// WithFlowLoader sets the source of the bot flows. Required.
func WithFlowLoader(loader ports.FlowLoader) Option {
	return func(r *Runtime) {
		r.loader = loader
	}
}

// WithActions replaces the default registry, which holds the builtin actions.
func WithActions(actions *registry.Registry) Option {
	return func(r *Runtime) {
		r.actions = actions
	}
}

// WithActionServers resolves the servers of remote actions.
func WithActionServers(servers ports.ActionServerResolver) Option {
	return func(r *Runtime) {
		r.servers = servers
	}
}

// WithRenderer replaces the builtin content renderer.
func WithRenderer(renderer ports.ContentRenderer) Option {
	return func(r *Runtime) {
		r.renderer = renderer
	}
}

// WithSender registers the sender of a channel.
func WithSender(channel string, sender ports.Sender) Option {
	return func(r *Runtime) {
		r.senders[channel] = sender
	}
}

// WithSandbox configures the condition evaluator.
func WithSandbox(cfg sandbox.Config) Option {
	return func(r *Runtime) {
		r.sandboxCfg = cfg
	}
}

// WithEvaluator replaces the sandbox entirely.
func WithEvaluator(evaluator sandbox.Evaluator) Option {
	return func(r *Runtime) {
		r.evaluator = evaluator
	}
}

// WithEntryFlow sets the flow new conversations start in.
func WithEntryFlow(flow string) Option {
	return func(r *Runtime) {
		r.entryFlow = flow
	}
}

// WithErrorFlow sets the flow receiving conversations whose action failed.
func WithErrorFlow(flow string) Option {
	return func(r *Runtime) {
		r.errorFlow = flow
	}
}

// WithMaxSteps bounds the nodes entered during one turn.
func WithMaxSteps(n int) Option {
	return func(r *Runtime) {
		r.maxSteps = n
	}
}

// WithLastMessagesLimit caps the reply history kept in each session.
func WithLastMessagesLimit(n int) Option {
	return func(r *Runtime) {
		r.lastMessages = n
	}
}

// WithMiddlewareTimeout bounds middleware that declare no timeout of their own.
func WithMiddlewareTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.middlewareTimeout = d
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runtime) {
		r.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithRealtime publishes processed events to admins and, unless another
// sender is registered for it, delivers replies of the web channel to visitors.
func WithRealtime(hub *realtime.Hub) Option {
	return func(r *Runtime) {
		r.hub = hub
	}
}

// New initializes a Runtime.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		lastMessages: domain.DefaultLastMessagesLimit,
		logger:       logging.NewNop(),
		senders:      make(map[string]ports.Sender),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.loader == nil {
		return nil, errors.New("a flow loader is required")
	}
	if r.store == nil {
		r.store = memory.NewStore()
	}
	if r.actions == nil {
		r.actions = registry.NewRegistry(registry.WithLogger(r.logger))
		registry.RegisterBuiltins(r.actions)
	}
	if r.servers == nil {
		r.servers = registry.NewServerDirectory()
	}
	if r.renderer == nil {
		r.renderer = render.New()
	}
	if r.evaluator == nil {
		r.evaluator = sandbox.New(r.sandboxCfg, sandbox.WithLifecycleHooks(r.hooks))
	}
	if r.hub != nil {
		if _, ok := r.senders[WebChannel]; !ok {
			r.senders[WebChannel] = realtimeSender(r.hub)
		}
		r.hub.OnClient(r.fromVisitor)
	}

	r.pipeline = middleware.NewPipeline(
		middleware.WithDefaultTimeout(r.middlewareTimeout),
		middleware.WithLogger(r.logger),
		middleware.WithLifecycleHooks(r.hooks),
	)

	sessionOpts := []session.Option{session.WithLogger(r.logger), session.WithLockTTL(r.lockTTL)}
	if r.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(r.locker))
	}
	r.sessions = session.NewManager(r.store, sessionOpts...)

	processor := instruction.NewProcessor(
		instruction.NewActionStrategy(r.actions, r.servers, r.renderer, r,
			instruction.WithActionLogger(r.logger),
			instruction.WithLastMessagesLimit(r.lastMessages),
			instruction.WithErrorFlow(r.errorFlow),
		),
		instruction.NewTransitionStrategy(r.evaluator, r.logger),
		r.hooks,
	)
	r.engine = dialog.NewEngine(r.loader, processor,
		dialog.WithEntryFlow(r.entryFlow),
		dialog.WithMaxSteps(r.maxSteps),
		dialog.WithLifecycleHooks(r.hooks),
		dialog.WithLogger(r.logger),
	)

	return r, nil
}

// Pipeline returns the middleware chains, for registration.
func (r *Runtime) Pipeline() *middleware.Pipeline {
	return r.pipeline
}

// Sessions returns the session manager.
func (r *Runtime) Sessions() *session.Manager {
	return r.sessions
}

// Engine returns the dialog engine.
func (r *Runtime) Engine() *dialog.Engine {
	return r.engine
}

// Actions returns the action registry.
func (r *Runtime) Actions() *registry.Registry {
	return r.actions
}

// Hub returns the realtime hub, nil when realtime is disabled.
func (r *Runtime) Hub() *realtime.Hub {
	return r.hub
}

// RegisterSender sets the sender of a channel, replacing any previous one.
func (r *Runtime) RegisterSender(channel string, sender ports.Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[channel] = sender
}

func (r *Runtime) sender(channel string) (ports.Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[channel]
	return s, ok
}

// Reload reads the flows of a bot again. The previous flows stay in use
// when the new ones do not compile.
func (r *Runtime) Reload(ctx context.Context, botID string) error {
	_, err := r.engine.Reload(ctx, botID)
	return err
}
