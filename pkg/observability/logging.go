package observability

import (
	"context"
	"log/slog"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// LogHooks logs pipeline activity at debug level, and failures at warn level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "dispatch failed", "bot_id", e.BotID, "event_id", e.EventID, "direction", e.Direction, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "dispatch", "bot_id", e.BotID, "event_id", e.EventID,
				"direction", e.Direction, "outcome", e.Outcome, "duration", e.Duration)
		},
		OnMiddleware: func(ctx context.Context, e *domain.MiddlewareEvent) {
			if e.Outcome == "timedOut" {
				logger.WarnContext(ctx, "middleware timed out", "middleware", e.Name, "event_id", e.EventID)
			}
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "bot_id", e.BotID, "flow", e.Flow, "node", e.Node)
		},
		OnInstruction: func(ctx context.Context, e *domain.InstructionEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "instruction failed", "bot_id", e.BotID, "event_id", e.EventID, "fn", e.Fn, "err", e.Err)
			}
		},
	}
}
