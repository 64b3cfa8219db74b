package ports

import (
	"context"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// ActionCall describes one action invocation.
type ActionCall struct {
	BotID         string
	ActionName    string
	IncomingEvent *domain.Event
	ActionArgs    map[string]any
	// ActionServer is set when the action runs on a remote action server.
	ActionServer *domain.ActionServer
}

// ActionRegistry runs the actions of a bot.
type ActionRegistry interface {
	// HasAction reports whether the bot can run the action locally.
	HasAction(ctx context.Context, botID, name string) (bool, error)

	// RunAction invokes the action. It fails when the action is missing or errors.
	RunAction(ctx context.Context, call ActionCall) error
}

// ActionServerResolver looks up remote action servers by id.
type ActionServerResolver interface {
	GetServer(ctx context.Context, id string) (*domain.ActionServer, bool)
}
