package main

import (
	"errors"

	"procurement/internal/apperror"
	"procurement/internal/container"
	"procurement/internal/database"
	"procurement/internal/model"
	"procurement/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and seed built-in data",
	Long: `Create or update the schema, seed the built-in roles and permissions,
optionally create the first administrator, and seed the approval chain from
the configuration when no chain exists yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		db, err := database.Connect(cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()

		log.Info("running database migrations")
		if err := database.Migrate(db); err != nil {
			return err
		}

		ctr := container.New(cfg, db, log)
		email, _ := cmd.Flags().GetString("admin-email")
		if email != "" {
			username, _ := cmd.Flags().GetString("admin-username")
			password, _ := cmd.Flags().GetString("admin-password")
			_, err := ctr.Users.CreateUser(cmd.Context(), service.CreateUserRequest{
				Username: username,
				Email:    email,
				Password: password,
				Role:     model.RoleAdmin,
			})
			switch {
			case errors.Is(err, apperror.ErrConflict):
				log.Info("administrator already exists", zap.String("email", email))
			case err != nil:
				return err
			default:
				log.Info("administrator created", zap.String("email", email))
			}
		}

		if err := ctr.Seed(cmd.Context()); err != nil {
			return err
		}
		log.Info("migrations completed")
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("admin-email", "", "create an administrator with this email")
	migrateCmd.Flags().String("admin-username", "admin", "username of the administrator")
	migrateCmd.Flags().String("admin-password", "", "password of the administrator")
}
