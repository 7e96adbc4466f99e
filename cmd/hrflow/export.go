package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/hr-approval/internal/application/service"
	"github.com/garyjia/hr-approval/internal/application/workflow"
	"github.com/garyjia/hr-approval/internal/container"
	"github.com/garyjia/hr-approval/internal/domain/entity"
)

// exportCmd archives a request listing as an xlsx workbook
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a request listing to an xlsx workbook",
	Long: `Render the listing a user would see for a request type and scope, and
save it under export.dir/<type>/. The listing is scoped to the user given
by --as exactly as it is over the API.`,
	Example: `  hrflow export --type leave --scope finalized --as hr@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typeFlag, _ := cmd.Flags().GetString("type")
		scopeFlag, _ := cmd.Flags().GetString("scope")
		as, _ := cmd.Flags().GetString("as")

		requestType, err := entity.ParseRequestType(typeFlag)
		if err != nil {
			return err
		}
		scope, err := service.ParseScope(scopeFlag)
		if err != nil {
			return err
		}

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

		repos, err := container.ProvideRepositories(db, logger)
		if err != nil {
			return err
		}
		user, err := repos.Users.GetByEmail(cmd.Context(), as)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %q not found", as)
		}

		services, err := container.ProvideServices(&container.ServiceDeps{
			Registry: workflow.DefaultRegistry(),
			Repos:    repos,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		store, err := container.ProvideFileStorage(&cfg.Export, logger)
		if err != nil {
			return err
		}

		path, err := services.Exports.Archive(cmd.Context(), scope, user.Identity(), requestType, store)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("type", "", "request type: leave, permission, travel, conveyance or asset")
	exportCmd.Flags().String("scope", "finalized", "listing scope: pending, mine, finalized or acted")
	exportCmd.Flags().String("as", "", "email of the user whose view is exported")
	_ = exportCmd.MarkFlagRequired("type")
	_ = exportCmd.MarkFlagRequired("as")
}
