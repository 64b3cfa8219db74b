package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/pkg/domain"
)

// Next is the continuation handed to every handler.
// Only the first call counts; later calls are discarded.
type Next func(err error, swallow, skip bool)

// Handler processes one event. Returning an error is the same as next(err, false, false).
type Handler func(ctx context.Context, evt *domain.Event, next Next) error

// Entry is one middleware registration.
type Entry struct {
	Name        string
	Description string
	Direction   domain.Direction
	Order       int
	Handler     Handler
	// Timeout bounds the wait for the continuation. Zero uses the chain default.
	Timeout time.Duration
}

// RunState is the state of one chain run.
type RunState int

const (
	StatePending RunState = iota
	StateRunning
	StateSwallowed
	StateCompleted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSwallowed:
		return "swallowed"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Outcomes recorded on the event audit trail.
const (
	OutcomeCompleted = "completed"
	OutcomeSwallowed = "swallowed"
	OutcomeSkipped   = "skipped"
	OutcomeTimedOut  = "timedOut"
	OutcomeFailed    = "failed"
)

// StepName formats an audit trail annotation.
func StepName(middleware, outcome string) string {
	return "mw:" + middleware + ":" + outcome
}

type registration struct {
	Entry
	seq uint64
}

// Chain is the ordered set of handlers of one direction.
// Safe for concurrent use: registrations may change while runs are in flight,
// each run works on the ordering observed when it started.
type Chain struct {
	direction domain.Direction

	mu      sync.RWMutex
	entries []registration
	seq     uint64

	defaultTimeout time.Duration
	logger         *slog.Logger
	hooks          domain.LifecycleHooks
}

// Option configures a Chain.
type Option func(*Chain)

// WithDefaultTimeout bounds handlers that have no timeout of their own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Chain) {
		c.defaultTimeout = d
	}
}

// WithLogger configures a logger for the chain.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Chain) {
		c.hooks = hooks
	}
}

// NewChain creates an empty chain for one direction.
func NewChain(direction domain.Direction, opts ...Option) *Chain {
	c := &Chain{
		direction: direction,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Direction returns the direction of the events this chain runs.
func (c *Chain) Direction() domain.Direction {
	return c.direction
}

// Register adds a handler. Names are unique within the chain.
func (c *Chain) Register(entry Entry) error {
	if entry.Name == "" || entry.Handler == nil {
		return fmt.Errorf("%w: name and handler are required", ErrInvalidEntry)
	}
	if entry.Direction == "" {
		entry.Direction = c.direction
	}
	if entry.Direction != c.direction {
		return fmt.Errorf("%w: %q targets %s, chain is %s", ErrInvalidEntry, entry.Name, entry.Direction, c.direction)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.entries {
		if r.Name == entry.Name {
			return &DuplicateMiddlewareError{Name: entry.Name, Direction: c.direction}
		}
	}

	c.seq++
	c.entries = append(c.entries, registration{Entry: entry, seq: c.seq})
	sort.SliceStable(c.entries, func(i, j int) bool {
		if c.entries[i].Order != c.entries[j].Order {
			return c.entries[i].Order < c.entries[j].Order
		}
		return c.entries[i].seq < c.entries[j].seq
	})

	c.logger.Debug("Middleware registered",
		"middleware", entry.Name,
		"direction", c.direction,
		"order", entry.Order,
	)
	return nil
}

// Remove unregisters a handler. It reports whether something was removed;
// removing an unknown name is not an error.
func (c *Chain) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range c.entries {
		if r.Name == name {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			c.logger.Debug("Middleware removed", "middleware", name, "direction", c.direction)
			return true
		}
	}
	return false
}

// Entries returns the registrations in execution order.
func (c *Chain) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	for i, r := range c.entries {
		out[i] = r.Entry
	}
	return out
}

type outcome struct {
	err     error
	swallow bool
	skip    bool
}

// Run passes the event through every handler, one at a time.
// It returns StateSwallowed or StateCompleted, or StateFailed with the error
// that aborted the run.
func (c *Chain) Run(ctx context.Context, evt *domain.Event) (RunState, error) {
	entries := c.Entries()

	for _, entry := range entries {
		start := time.Now()
		res, timedOut := c.invoke(ctx, entry, evt)

		switch {
		case timedOut:
			evt.AddStep(StepName(entry.Name, OutcomeTimedOut))
			c.logger.Warn("Middleware timed out",
				"middleware", entry.Name,
				"event_id", evt.ID,
				"timeout", c.timeoutOf(entry),
			)
			c.report(ctx, evt, entry.Name, OutcomeTimedOut, start)

		case res.err != nil:
			c.report(ctx, evt, entry.Name, OutcomeFailed, start)
			return StateFailed, res.err

		case res.swallow:
			evt.AddStep(StepName(entry.Name, OutcomeSwallowed))
			c.report(ctx, evt, entry.Name, OutcomeSwallowed, start)
			return StateSwallowed, nil

		case res.skip:
			evt.AddStep(StepName(entry.Name, OutcomeSkipped))
			c.report(ctx, evt, entry.Name, OutcomeSkipped, start)

		default:
			evt.AddStep(StepName(entry.Name, OutcomeCompleted))
			c.report(ctx, evt, entry.Name, OutcomeCompleted, start)
		}
	}

	return StateCompleted, nil
}

// invoke runs one handler and waits for its continuation, its timeout or ctx.
func (c *Chain) invoke(ctx context.Context, entry Entry, evt *domain.Event) (outcome, bool) {
	done := make(chan outcome, 1)
	var once sync.Once
	next := func(err error, swallow, skip bool) {
		once.Do(func() {
			done <- outcome{err: err, swallow: swallow, skip: skip}
		})
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				next(&PanicError{Name: entry.Name, Value: r}, false, false)
			}
		}()
		if err := entry.Handler(ctx, evt, next); err != nil {
			next(err, false, false)
		}
	}()

	var expired <-chan time.Time
	if timeout := c.timeoutOf(entry); timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case res := <-done:
		return res, false
	case <-expired:
		return outcome{}, true
	case <-ctx.Done():
		return outcome{err: ctx.Err()}, false
	}
}

func (c *Chain) timeoutOf(entry Entry) time.Duration {
	if entry.Timeout > 0 {
		return entry.Timeout
	}
	return c.defaultTimeout
}

func (c *Chain) report(ctx context.Context, evt *domain.Event, name, result string, start time.Time) {
	if c.hooks.OnMiddleware == nil {
		return
	}
	c.hooks.OnMiddleware(ctx, &domain.MiddlewareEvent{
		HookBase:  domain.NewHookBase(domain.HookMiddleware, evt),
		Direction: c.direction,
		Name:      name,
		Outcome:   result,
		Duration:  time.Since(start),
	})
}
