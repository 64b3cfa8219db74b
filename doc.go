/*
Package botpress is a conversational event pipeline: the runtime that receives
channel events, runs them through middleware, drives the dialog state machine
and sends the replies back out.

# Concept

Every message is an Event. Incoming events go through the incoming middleware
chain, then the dialog engine executes the flow instructions of the
conversation: output directives, actions and transitions whose conditions are
evaluated in a sandbox. Replies are outgoing events: they go through the
outgoing middleware chain and are handed to the sender of their channel.

Dialog session state is persisted per conversation (bot, channel, user) and
every turn of one conversation is serialized.

# Usage

	b := dsl.New()
	b.Flow("main").Add("entry").Text("Hello!").End()
	loader, err := b.Build("my-bot")
	if err != nil {
		log.Fatal(err)
	}

	rt, err := botpress.New(
		botpress.WithFlowLoader(loader),
		botpress.WithSender("web", mySender),
	)
	if err != nil {
		log.Fatal(err)
	}

	rt.Pipeline().Incoming().Register(middleware.Entry{
		Name:    "audit",
		Order:   10,
		Handler: func(ctx context.Context, evt *domain.Event, next middleware.Next) error {
			next(nil, false, false)
			return nil
		},
	})

	err = rt.Dispatch(ctx, domain.NewEvent(domain.EventInit{
		Direction: domain.DirectionIncoming,
		BotID:     "my-bot",
		Channel:   "web",
		Target:    "user-1",
		Type:      "text",
		Payload:   map[string]any{"text": "hello"},
	}))

# Architecture

  - pkg/domain: events, dialog session state, flows and lifecycle hooks.
  - pkg/middleware: the incoming and outgoing chains.
  - pkg/instruction: the instruction grammar and its strategies.
  - pkg/sandbox: condition evaluation.
  - pkg/dialog: the flow state machine.
  - pkg/session: per-conversation serialization over a StateStore.
  - pkg/realtime: websocket fan-out to visitors and admins.
  - pkg/adapters: stores, flow loaders and the HTTP API.
*/
package botpress
