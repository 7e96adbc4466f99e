package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	"github.com/garyjia/hr-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/hr-approval/pkg/utils"
)

// userCmd groups the role directory commands
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage the role directory",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a user with one or more roles",
	Example: `  hrflow user add --name "Asha Rao" --email asha@example.com --role "Team Lead" --role Director
  hrflow user add --name "Ravi" --email ravi@example.com --role employee --lark-open-id ou_123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		name = utils.SanitizeString(name)
		email = utils.SanitizeString(email)
		if name == "" {
			return fmt.Errorf("--name must not be blank")
		}
		if err := utils.ValidateEmail(email); err != nil {
			return err
		}
		labels, _ := cmd.Flags().GetStringArray("role")
		openID, _ := cmd.Flags().GetString("lark-open-id")

		roles := make([]identity.Role, 0, len(labels))
		for _, l := range labels {
			r, ok := identity.ParseRole(l)
			if !ok {
				return fmt.Errorf("unknown role %q", l)
			}
			roles = append(roles, r)
		}
		if len(roles) == 0 {
			roles = append(roles, identity.RoleEmployee)
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

		user := &entity.User{
			Name:       name,
			Email:      email,
			LarkOpenID: openID,
			Roles:      identity.NewRoleSet(roles...),
		}
		users := repository.NewUserRepository(db.DB, logger)
		if err := users.Create(cmd.Context(), user); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created user %d %s <%s> roles=%s\n",
			user.ID, user.Name, user.Email, strings.Join(user.Roles.Strings(), ","))
		return nil
	},
}

func init() {
	userAddCmd.Flags().String("name", "", "display name")
	userAddCmd.Flags().String("email", "", "email address, used to issue tokens")
	userAddCmd.Flags().StringArray("role", nil, "role to grant (repeatable)")
	userAddCmd.Flags().String("lark-open-id", "", "Lark open_id for notifications")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userAddCmd)
}
