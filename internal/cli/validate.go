package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ValidateFlows compiles the flows of each bot and checks the entry flow
// exists. Without bot ids, every bot of the flows directory is checked.
func ValidateFlows(ctx context.Context, app *App, botIDs []string, out io.Writer) error {
	if len(botIDs) == 0 {
		bots, err := app.Loader.Bots()
		if err != nil {
			return err
		}
		if len(bots) == 0 {
			return fmt.Errorf("no bot found in %s", app.Config.Flows.Dir)
		}
		botIDs = bots
	}

	var errs []error
	for _, botID := range botIDs {
		flows, err := app.Runtime.Engine().Flows(ctx, botID)
		if err == nil {
			if _, ok := flows[app.Config.Dialog.EntryFlow]; !ok {
				err = fmt.Errorf("entry flow %s is missing", app.Config.Dialog.EntryFlow)
			}
		}
		if err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", botID, err)
			errs = append(errs, fmt.Errorf("bot %s: %w", botID, err))
			continue
		}
		fmt.Fprintf(out, "✓ %s: %d flows\n", botID, len(flows))
	}
	return errors.Join(errs...)
}
