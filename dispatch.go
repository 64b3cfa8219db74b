package botpress

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/middleware"
	"github.com/lyoneil/Botpress/pkg/ports"
	"github.com/lyoneil/Botpress/pkg/realtime"
)

// EventProcessed is the admin realtime notification sent after each turn.
const EventProcessed = "event.processed"

// WebchatMessage names the realtime frames carrying webchat messages, in both directions.
const WebchatMessage = "webchat.message"

// Dispatch runs an event through the pipeline of its direction.
// Incoming events then drive the dialog engine, unless a middleware swallowed
// them or flagged them with domain.FlagSkipDialogEngine. Outgoing events are
// handed to the sender of their channel.
func (r *Runtime) Dispatch(ctx context.Context, evt *domain.Event) error {
	start := time.Now()
	outcome, err := r.dispatch(ctx, evt)

	if r.hooks.OnDispatch != nil {
		r.hooks.OnDispatch(ctx, &domain.DispatchEvent{
			HookBase:  domain.NewHookBase(domain.HookDispatch, evt),
			Direction: evt.Direction,
			Outcome:   outcome,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
	return err
}

func (r *Runtime) dispatch(ctx context.Context, evt *domain.Event) (string, error) {
	if err := evt.Validate(); err != nil {
		return middleware.OutcomeFailed, err
	}
	chain, err := r.pipeline.Chain(evt.Direction)
	if err != nil {
		return middleware.OutcomeFailed, err
	}

	state, err := chain.Run(ctx, evt)
	switch state {
	case middleware.StateFailed:
		r.logger.Warn("Middleware chain failed", "bot_id", evt.BotID, "event_id", evt.ID, "direction", evt.Direction, "err", err)
		return middleware.OutcomeFailed, err
	case middleware.StateSwallowed:
		return middleware.OutcomeSwallowed, nil
	}

	if evt.Direction == domain.DirectionOutgoing {
		if err := r.send(ctx, evt); err != nil {
			return middleware.OutcomeFailed, err
		}
		return middleware.OutcomeCompleted, nil
	}

	if evt.HasFlag(domain.FlagSkipDialogEngine) {
		r.logger.Debug("dialog engine skipped", "bot_id", evt.BotID, "event_id", evt.ID)
		return middleware.OutcomeCompleted, nil
	}
	if err := r.converse(ctx, evt); err != nil {
		return middleware.OutcomeFailed, err
	}
	r.notify(ctx, evt)
	return middleware.OutcomeCompleted, nil
}

// converse runs one dialog turn under the conversation lock.
func (r *Runtime) converse(ctx context.Context, evt *domain.Event) error {
	key := evt.ConversationKey().String()

	var turnErr error
	_, err := r.sessions.Update(ctx, key, func(ctx context.Context, state *domain.State) error {
		evt.State = state
		turnErr = r.engine.ProcessEvent(ctx, evt)
		// The engine resets looping conversations; that reset must be saved.
		if errors.Is(turnErr, domain.ErrInfiniteLoop) {
			return nil
		}
		return turnErr
	})
	if err != nil {
		return fmt.Errorf("conversation %s: %w", key, err)
	}
	if turnErr != nil {
		return fmt.Errorf("conversation %s: %w", key, turnErr)
	}
	return nil
}

// Reply sends rendered elements to a conversation, one outgoing event per element.
func (r *Runtime) Reply(ctx context.Context, dest domain.Destination, elements []domain.RenderedElement, causingEventID string) error {
	for _, el := range elements {
		typ, _ := el["type"].(string)
		if typ == "" {
			typ = "text"
		}
		evt := domain.NewEvent(domain.EventInit{
			Direction:       domain.DirectionOutgoing,
			BotID:           dest.BotID,
			Channel:         dest.Channel,
			Target:          dest.Target,
			ThreadID:        dest.ThreadID,
			Type:            typ,
			Payload:         maps.Clone(map[string]any(el)),
			IncomingEventID: causingEventID,
		})
		if err := r.Dispatch(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) send(ctx context.Context, evt *domain.Event) error {
	sender, ok := r.sender(evt.Channel)
	if !ok {
		r.logger.Debug("no sender registered for channel, dropping event",
			"bot_id", evt.BotID, "event_id", evt.ID, "channel", evt.Channel)
		return nil
	}
	if err := sender.Send(ctx, evt); err != nil {
		return fmt.Errorf("channel %s: failed to send event %s: %w", evt.Channel, evt.ID, err)
	}
	return nil
}

// notify tells admins an incoming event went through the dialog engine.
func (r *Runtime) notify(ctx context.Context, evt *domain.Event) {
	if r.hub == nil {
		return
	}
	data := map[string]any{
		"eventId": evt.ID,
		"botId":   evt.BotID,
		"channel": evt.Channel,
		"target":  evt.Target,
		"preview": evt.Preview,
		"steps":   evt.Steps(),
	}
	if evt.State != nil {
		data["currentFlow"] = evt.State.Context.CurrentFlow
		data["currentNode"] = evt.State.Context.CurrentNode
	}
	if err := r.hub.Send(ctx, realtime.ForAdmins(EventProcessed, data)); err != nil {
		r.logger.Warn("Failed to publish realtime notification", "event_id", evt.ID, "err", err)
	}
}

// realtimeSender pushes replies to the room of the visitor they address.
func realtimeSender(hub *realtime.Hub) ports.Sender {
	return ports.SenderFunc(func(ctx context.Context, evt *domain.Event) error {
		return hub.Send(ctx, realtime.ForVisitor(evt.Target, WebchatMessage, map[string]any{
			"eventId":         evt.ID,
			"incomingEventId": evt.IncomingEventID,
			"type":            evt.Type,
			"payload":         evt.Payload,
		}))
	})
}

// visitorMessage is the data of a WebchatMessage frame sent by a guest.
type visitorMessage struct {
	BotID   string         `mapstructure:"botId"`
	Type    string         `mapstructure:"type"`
	Text    string         `mapstructure:"text"`
	Payload map[string]any `mapstructure:"payload"`
}

// fromVisitor dispatches the messages guests send over their socket as
// incoming events of WebChannel.
func (r *Runtime) fromVisitor(ctx context.Context, name string, data any, meta realtime.ClientMeta) {
	if name != WebchatMessage || meta.Namespace != realtime.NamespaceGuest || meta.VisitorID == "" {
		return
	}
	var msg visitorMessage
	if err := mapstructure.Decode(data, &msg); err != nil {
		r.logger.Debug("invalid webchat frame", "socket_id", meta.SocketID, "err", err)
		return
	}
	if msg.Type == "" {
		msg.Type = "text"
	}
	payload := maps.Clone(msg.Payload)
	if payload == nil {
		payload = map[string]any{}
	}
	if msg.Text != "" {
		payload["text"] = msg.Text
	}

	evt := domain.NewEvent(domain.EventInit{
		Direction: domain.DirectionIncoming,
		BotID:     msg.BotID,
		Channel:   WebChannel,
		Target:    meta.VisitorID,
		Type:      msg.Type,
		Payload:   payload,
	})
	if err := r.Dispatch(ctx, evt); err != nil {
		r.logger.Warn("Webchat message failed", "bot_id", evt.BotID, "event_id", evt.ID, "visitor_id", meta.VisitorID, "err", err)
	}
}
