package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/lyoneil/Botpress/internal/cli"
	"github.com/lyoneil/Botpress/internal/config"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <bot-id>",
	Short: "Export the flows of a bot as a diagram",
	Long:  `Loads the flows of a bot and outputs a Mermaid diagram (graph TD), one subgraph per flow.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		return withApp(cmd, func(cfg *config.Config) {
			cfg.Realtime.Enabled = false
		}, func(ctx context.Context, app *cli.App) error {
			return cli.PrintGraph(ctx, app, args[0], sessionID, os.Stdout)
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Highlight the path of a stored conversation")
}
