package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lyoneil/Botpress/internal/cli"
	"github.com/lyoneil/Botpress/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [bot-id...]",
	Short: "Check the flows of bots",
	Long:  `Loads and compiles the flows of the given bots, or of every bot of the flows directory, and reports the errors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(cfg *config.Config) {
			cfg.Realtime.Enabled = false
		}, func(ctx context.Context, app *cli.App) error {
			if err := cli.ValidateFlows(ctx, app, args, os.Stdout); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Println("Flows are valid! ✅")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
