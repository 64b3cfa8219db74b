package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lyoneil/Botpress/internal/cli"
	"github.com/lyoneil/Botpress/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the converse API, the session administration endpoints, the metrics
endpoint and, when enabled, the realtime websocket namespaces.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return withApp(cmd, func(cfg *config.Config) {
			if addr != "" {
				cfg.Server.Addr = addr
			}
		}, func(ctx context.Context, app *cli.App) error {
			return cli.Serve(ctx, app)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
}
