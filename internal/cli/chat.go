package cli

import (
	"context"
	"errors"
	"io"

	"github.com/lyoneil/Botpress"
	"github.com/lyoneil/Botpress/internal/presentation/tui"
)

// ChatOptions configures a terminal conversation.
type ChatOptions struct {
	BotID    string
	UserID   string
	Input    io.Reader
	Output   io.Writer
	Headless bool
	// Fresh deletes the stored conversation before starting.
	Fresh bool
	// Markdown renders replies as markdown, for terminals.
	Markdown bool
}

// Chat holds a conversation with a bot on line-based IO. An interrupted
// chat is not an error.
func Chat(ctx context.Context, app *App, opts ChatOptions) error {
	console := botpress.NewConsole(opts.BotID)
	console.Input = opts.Input
	console.Output = opts.Output
	console.Headless = opts.Headless
	if opts.UserID != "" {
		console.UserID = opts.UserID
	}

	if opts.Markdown {
		render, err := tui.NewRenderer()
		if err != nil {
			app.Logger.Warn("Markdown rendering unavailable", "err", err)
		} else {
			console.Markdown = render
		}
	}
	if !opts.Headless {
		tui.PrintBanner(opts.Output)
	}

	if opts.Fresh {
		key := sessionKey(opts.BotID, botpress.ConsoleChannel, console.UserID)
		if err := app.Runtime.Sessions().Delete(ctx, key); err != nil {
			app.Logger.Warn("Failed to reset conversation", "session_id", key, "err", err)
		}
	}

	err := console.Run(ctx, app.Runtime)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
