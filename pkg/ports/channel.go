package ports

import (
	"context"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// ContentRenderer turns a content type and its arguments into channel-agnostic elements.
type ContentRenderer interface {
	RenderElement(ctx context.Context, contentType string, args map[string]any, dest domain.Destination) ([]domain.RenderedElement, error)
}

// Replier emits rendered elements as outgoing events in reply to an incoming one.
type Replier interface {
	Reply(ctx context.Context, dest domain.Destination, elements []domain.RenderedElement, causingEventID string) error
}

// Sender delivers an outgoing event to a channel. Channel adapters implement it.
type Sender interface {
	Send(ctx context.Context, evt *domain.Event) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, evt *domain.Event) error

// Send calls f(ctx, evt).
func (f SenderFunc) Send(ctx context.Context, evt *domain.Event) error {
	return f(ctx, evt)
}
