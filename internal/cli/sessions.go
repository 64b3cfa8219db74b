package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
)

func sessionKey(botID, channel, target string) string {
	return domain.ConversationKey{BotID: botID, Channel: channel, UserID: target}.String()
}

// ListSessions prints the stored conversations.
func ListSessions(ctx context.Context, store ports.StateStore, out io.Writer) error {
	sessions, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No active sessions found.")
		return nil
	}
	fmt.Fprintln(out, "Active Sessions:")
	for _, s := range sessions {
		key, err := domain.ParseConversationKey(s)
		if err != nil {
			fmt.Fprintf(out, "- %s\n", s)
			continue
		}
		fmt.Fprintf(out, "- %s (bot %s, channel %s, user %s)\n", s, key.BotID, key.Channel, key.UserID)
	}
	return nil
}

// InspectSession prints a stored conversation as indented JSON.
func InspectSession(ctx context.Context, store ports.StateStore, sessionID string, out io.Writer) error {
	state, err := store.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session '%s': %w", sessionID, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// RemoveSessions deletes conversations, reporting each one. All of them are
// attempted; the failures are joined.
func RemoveSessions(ctx context.Context, store ports.StateStore, sessionIDs []string, out io.Writer) error {
	var errs []error
	for _, id := range sessionIDs {
		if err := store.Delete(ctx, id); err != nil {
			fmt.Fprintf(out, "Error removing '%s': %v\n", id, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "Removed session '%s'\n", id)
	}
	return errors.Join(errs...)
}
