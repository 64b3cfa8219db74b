package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lyoneil/Botpress/internal/cli"
	"github.com/lyoneil/Botpress/internal/config"
	"github.com/lyoneil/Botpress/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "botpress",
	Short: "Botpress runs conversational bots",
	Long: `Botpress processes conversational events through a middleware pipeline
and a dialog engine driven by flow files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Commands run until they complete or SIGINT or SIGTERM is received.
func Execute() {
	ctx := cli.NewSignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	ctx.Cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("flows", "", "Directory containing the bots flows (overrides flows.dir)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig reads the configuration named by the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("flows"); dir != "" {
		cfg.Flows.Dir = dir
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Log.ParseLevel()
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(cfg.Log.Format, level)
}

// withApp builds the app described by the configuration, runs fn and closes it.
func withApp(cmd *cobra.Command, prepare func(*config.Config), fn func(context.Context, *cli.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if prepare != nil {
		prepare(cfg)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize botpress: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to release resources", "err", err)
		}
	}()
	return fn(ctx, app)
}
