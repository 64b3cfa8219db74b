package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lyoneil/Botpress/internal/presentation/graph"
	"github.com/lyoneil/Botpress/pkg/domain"
)

// PrintGraph writes the flows of a bot as a Mermaid flowchart. With a
// session id, the path of that conversation is highlighted.
func PrintGraph(ctx context.Context, app *App, botID, sessionID string, out io.Writer) error {
	flows, err := app.Loader.LoadFlows(ctx, botID)
	if err != nil {
		return err
	}

	var overlay *graph.GraphOverlay
	if sessionID != "" {
		state, err := app.Store.Load(ctx, sessionID)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to load session '%s': %w", sessionID, err)
		}
		if state != nil {
			overlay = graph.OverlayFromState(state)
		}
	}

	_, err = fmt.Fprint(out, graph.GenerateMermaid(flows, overlay))
	return err
}
