package ports

import (
	"context"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// FlowLoader defines how the runtime retrieves the dialog flows of a bot.
// This allows the flow source (files, memory, database) to be decoupled.
type FlowLoader interface {
	// LoadFlows returns every flow of the bot.
	// Returns domain.ErrFlowNotFound when the bot has no flows at all.
	LoadFlows(ctx context.Context, botID string) ([]domain.Flow, error)
}
