package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"decentra/internal/database"
	"decentra/internal/models"
	"decentra/internal/repository"
	"decentra/internal/security"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var adminInput struct {
	phone    string
	name     string
	surname  string
	password string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		phone := strings.TrimSpace(adminInput.phone)
		name := strings.TrimSpace(adminInput.name)
		surname := strings.TrimSpace(adminInput.surname)
		if phone == "" || name == "" || surname == "" || adminInput.password == "" {
			return errors.New("--phone, --name, --surname and --password are required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := database.NewPostgresPool(cmd.Context(), cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()

		digest, err := security.NewHasher(security.DefaultArgon2Params).Hash(adminInput.password)
		if err != nil {
			return err
		}

		user, err := repository.NewUserRepository(pool).Create(cmd.Context(), models.User{
			Phone:        phone,
			Name:         name,
			Surname:      surname,
			Role:         models.UserRoleAdmin,
			PasswordHash: digest,
			IsActive:     true,
		})
		if errors.Is(err, repository.ErrPhoneTaken) {
			return fmt.Errorf("phone %s is already registered", phone)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "admin %d created\n", user.ID)
		return nil
	},
}

var setActiveCmd = &cobra.Command{
	Use:   "set-active <id> <true|false>",
	Short: "Activate or deactivate an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		active, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid active flag %q", args[1])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := database.NewPostgresPool(cmd.Context(), cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := repository.NewUserRepository(pool).SetActive(cmd.Context(), id, active); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %d active=%t\n", id, active)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(createAdminCmd)
	userCmd.AddCommand(setActiveCmd)

	flags := createAdminCmd.Flags()
	flags.StringVar(&adminInput.phone, "phone", "", "phone number")
	flags.StringVar(&adminInput.name, "name", "", "first name")
	flags.StringVar(&adminInput.surname, "surname", "", "last name")
	flags.StringVar(&adminInput.password, "password", "", "initial password")
}
