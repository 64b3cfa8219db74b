package instruction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
)

// DefaultErrorFlow receives the conversation when an action fails and
// temp.onErrorFlowTo is not set.
const DefaultErrorFlow = "error.flow.json"

const replySource = "dialogManager"

// Strategy executes one kind of compiled instruction.
type Strategy interface {
	ProcessInstruction(ctx context.Context, botID string, in Compiled, evt *domain.Event) (domain.ProcessingResult, error)
}

// ActionStrategy executes node instructions that are not transitions:
// output directives and action calls.
type ActionStrategy struct {
	actions  ports.ActionRegistry
	servers  ports.ActionServerResolver
	renderer ports.ContentRenderer
	replier  ports.Replier

	logger            *slog.Logger
	lastMessagesLimit int
	errorFlow         string
	now               func() time.Time
}

// ActionOption configures an ActionStrategy.
type ActionOption func(*ActionStrategy)

func WithActionLogger(logger *slog.Logger) ActionOption {
	return func(s *ActionStrategy) {
		s.logger = logger
	}
}

// WithLastMessagesLimit caps session.lastMessages.
func WithLastMessagesLimit(n int) ActionOption {
	return func(s *ActionStrategy) {
		s.lastMessagesLimit = n
	}
}

// WithErrorFlow replaces DefaultErrorFlow.
func WithErrorFlow(flow string) ActionOption {
	return func(s *ActionStrategy) {
		if flow != "" {
			s.errorFlow = flow
		}
	}
}

// WithClock sets the time source of reply dates.
func WithClock(now func() time.Time) ActionOption {
	return func(s *ActionStrategy) {
		s.now = now
	}
}

// NewActionStrategy wires the collaborators of action instructions.
// servers may be nil when no action server is configured.
func NewActionStrategy(actions ports.ActionRegistry, servers ports.ActionServerResolver, renderer ports.ContentRenderer, replier ports.Replier, opts ...ActionOption) *ActionStrategy {
	s := &ActionStrategy{
		actions:           actions,
		servers:           servers,
		renderer:          renderer,
		replier:           replier,
		logger:            logging.NewNop(),
		lastMessagesLimit: domain.DefaultLastMessagesLimit,
		errorFlow:         DefaultErrorFlow,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessInstruction implements Strategy for *Say and *Action.
func (s *ActionStrategy) ProcessInstruction(ctx context.Context, botID string, in Compiled, evt *domain.Event) (domain.ProcessingResult, error) {
	switch in := in.(type) {
	case *Say:
		return s.say(ctx, botID, in, evt)
	case *Action:
		return s.invoke(ctx, botID, in, evt)
	default:
		return domain.NoTransition(), fmt.Errorf("action strategy cannot process %T", in)
	}
}

func (s *ActionStrategy) say(ctx context.Context, botID string, in *Say, evt *domain.Event) (domain.ProcessingResult, error) {
	args := in.Args
	if in.FromNodeArgs {
		args = in.Raw().Args
	}

	s.logger.Debug("render element", "bot_id", botID, "target", evt.Target, "type", in.OutputType)

	stateOf(evt).AppendTurn(domain.DialogTurnHistory{
		EventID:         evt.ID,
		IncomingPreview: evt.Preview,
		ReplyConfidence: 1,
		ReplySource:     replySource,
		ReplyDate:       s.now().UTC(),
		ReplyPreview:    in.OutputType,
	}, s.lastMessagesLimit)

	if err := s.SendMessage(ctx, in.OutputType, args, evt); err != nil {
		return domain.NoTransition(), err
	}
	return domain.NoTransition(), nil
}

// SendMessage renders contentType with args and replies to evt.
func (s *ActionStrategy) SendMessage(ctx context.Context, contentType string, args map[string]any, evt *domain.Event) error {
	dest := evt.Destination()
	common, err := CommonArgs(evt, args)
	if err != nil {
		return err
	}

	elements, err := s.renderer.RenderElement(ctx, contentType, common, dest)
	if err != nil {
		return fmt.Errorf("failed to render %q: %w", contentType, err)
	}
	if err := s.replier.Reply(ctx, dest, elements, evt.ID); err != nil {
		return fmt.Errorf("failed to reply with %q: %w", contentType, err)
	}
	return nil
}

func (s *ActionStrategy) invoke(ctx context.Context, botID string, in *Action, evt *domain.Event) (domain.ProcessingResult, error) {
	common, err := CommonArgs(evt, nil)
	if err != nil {
		return domain.NoTransition(), err
	}
	tpl, err := NewTemplate(common)
	if err != nil {
		return domain.NoTransition(), err
	}
	args := make(map[string]any, len(in.Args))
	for k, v := range in.Args {
		args[k] = tpl.Render(v)
	}

	var server *domain.ActionServer
	if in.ServerID != "" {
		var ok bool
		if s.servers != nil {
			server, ok = s.servers.GetServer(ctx, in.ServerID)
		}
		if !ok {
			s.logger.Warn("could not find action server", "bot_id", botID, "action", in.Name, "server", in.ServerID)
			return domain.NoTransition(), nil
		}
	}

	s.logger.Debug("execute action", "bot_id", botID, "target", evt.Target, "action", in.Name)

	if err := s.run(ctx, botID, in, evt, args, server); err != nil {
		errorFlow := stateOf(evt).OnErrorFlowTo(s.errorFlow)
		s.logger.Warn("action failed, redirecting", "bot_id", botID, "action", in.Name, "flow", errorFlow, "err", err)
		return domain.TransitionTo(errorFlow), nil
	}
	return domain.NoTransition(), nil
}

func (s *ActionStrategy) run(ctx context.Context, botID string, in *Action, evt *domain.Event, args map[string]any, server *domain.ActionServer) error {
	if server == nil {
		ok, err := s.actions.HasAction(ctx, botID, in.Name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("action %q: %w", in.Name, domain.ErrActionNotFound)
		}
	}
	return s.actions.RunAction(ctx, ports.ActionCall{
		BotID:         botID,
		ActionName:    in.Name,
		IncomingEvent: evt,
		ActionArgs:    args,
		ActionServer:  server,
	})
}

func stateOf(evt *domain.Event) *domain.State {
	if evt.State == nil {
		evt.State = domain.NewState()
	}
	return evt.State
}
