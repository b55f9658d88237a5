package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/picknpack/dashboard/internal/app"
	"github.com/picknpack/dashboard/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

// dash is built by the root command before any subcommand runs.
var dash *app.App

var stopHub context.CancelFunc

var rootCmd = &cobra.Command{
	Use:   "pickctl",
	Short: "Pick & Pack dashboard from the terminal",
	Long:  "pickctl drives the same order and stock workflow as the dashboard,\nsharing its configuration and local pick state.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(stockCmd)
	rootCmd.Version = version
}

func setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	// Nobody listens on the hub here, but it has to drain published events.
	ctx, cancel := context.WithCancel(context.Background())
	go a.Hub.Run(ctx)
	stopHub = cancel

	dash = a
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if stopHub != nil {
		stopHub()
	}
	if dash == nil {
		return nil
	}
	_ = dash.Log.Sync()
	return dash.Close()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
