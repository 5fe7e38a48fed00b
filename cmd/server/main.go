// Package main implements the entry point for the scry-queue server, which
// runs submitted operations on a bounded-concurrency task queue and exposes
// an HTTP API to submit work and control the queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the server command.
func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "scry-queue",
		Short: "Bounded-concurrency task queue server",
		Long: `scry-queue runs submitted operations in FIFO order with a fixed
concurrency limit. Work is submitted over HTTP and the queue can be
paused, resumed, cleared and awaited through the admin API.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (default is ./config.yaml)")
	return cmd
}

// runServer loads configuration, builds the application and serves until
// ctx is canceled.
func runServer(ctx context.Context, configFile string) error {
	cfg, err := loadAppConfig(configFile)
	if err != nil {
		return err
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	app, err := newApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
