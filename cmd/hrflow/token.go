package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/hr-approval/internal/container"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/infrastructure/persistence/repository"
)

// tokenCmd issues a bearer token for a directory user
var tokenCmd = &cobra.Command{
	Use:     "token",
	Short:   "Issue a bearer token for a user",
	Example: `  hrflow token --email asha@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		userID, _ := cmd.Flags().GetInt64("user-id")
		if email == "" && userID == 0 {
			return fmt.Errorf("one of --email or --user-id is required")
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

		users := repository.NewUserRepository(db.DB, logger)
		var user *entity.User
		if userID != 0 {
			user, err = users.GetByID(cmd.Context(), userID)
		} else {
			user, err = users.GetByEmail(cmd.Context(), email)
		}
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user not found")
		}

		tokens, err := container.ProvideTokenManager(&cfg.Auth)
		if err != nil {
			return err
		}
		token, err := tokens.Issue(user.ID, user.Email)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("email", "", "email of the user")
	tokenCmd.Flags().Int64("user-id", 0, "id of the user")
}
