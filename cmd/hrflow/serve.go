package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/container"
)

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the HTTP API. Pending migrations are applied first.
The server stops gracefully on SIGINT or SIGTERM, after in-flight
notifications have been delivered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		logger.Info("Starting HR approval service",
			zap.String("version", version),
			zap.String("address", cfg.Server.Address()),
			zap.Bool("lark", cfg.Lark.Enabled),
			zap.Bool("redis", cfg.Redis.Enabled))

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ctr, err := container.NewContainer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create container: %w", err)
		}
		if err := ctr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start container: %w", err)
		}
		defer func() {
			if err := ctr.Close(); err != nil {
				logger.Error("Container shutdown failed", zap.Error(err))
			}
		}()

		// Blocks until the signal context is cancelled
		if err := ctr.Server().Start(ctx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		logger.Info("Server exited successfully")
		return nil
	},
}
