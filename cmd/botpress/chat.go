package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lyoneil/Botpress/internal/cli"
	"github.com/lyoneil/Botpress/internal/config"
)

var chatCmd = &cobra.Command{
	Use:   "chat <bot-id>",
	Short: "Chat with a bot in the terminal",
	Long:  `Reads one message per line from stdin and prints the bot replies. Type "exit" or "quit" to leave.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.ChatOptions{
			BotID:  args[0],
			Input:  os.Stdin,
			Output: os.Stdout,
		}
		opts.UserID, _ = cmd.Flags().GetString("user")
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		plain, _ := cmd.Flags().GetBool("plain")
		opts.Markdown = !plain && !opts.Headless && term.IsTerminal(int(os.Stdout.Fd()))

		return withApp(cmd, func(cfg *config.Config) {
			cfg.Realtime.Enabled = false
		}, func(ctx context.Context, app *cli.App) error {
			return cli.Chat(ctx, app, opts)
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("user", "u", "", "User id of the conversation (default \"console\")")
	chatCmd.Flags().Bool("headless", false, "Print replies only, without banner or prompt")
	chatCmd.Flags().Bool("fresh", false, "Start over, deleting the stored conversation")
	chatCmd.Flags().Bool("plain", false, "Print replies as plain text, without markdown rendering")
}
