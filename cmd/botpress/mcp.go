package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lyoneil/Botpress/internal/cli"
	"github.com/lyoneil/Botpress/internal/config"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the runtime as an MCP Server.
This allows AI agents to talk to bots and inspect sessions and flows as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Logs go to stderr.
- sse: Uses Server-Sent Events over HTTP.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		return withApp(cmd, func(cfg *config.Config) {
			cfg.Realtime.Enabled = false
		}, func(ctx context.Context, app *cli.App) error {
			return cli.ServeMCP(ctx, app, transport, addr)
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
}
