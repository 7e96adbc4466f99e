package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/container"
	"github.com/garyjia/hr-approval/internal/config"
	"github.com/garyjia/hr-approval/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Create or update the database schema. Migrations come from
database.migrations_dir when it is set, otherwise from the copies
embedded in the binary. Applied migrations are skipped.`,
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

		db, err := openDatabase(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date\n", cfg.Database.Path)
		return nil
	},
}

// openDatabase connects to the configured database and applies migrations
func openDatabase(cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	bundle, err := container.ProvideDatabase(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return bundle.DB, nil
}
