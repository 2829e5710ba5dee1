package main

import (
	"fmt"
	"os"

	"procurement/internal/config"
	"procurement/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "procurement",
	Short: "Purchase requisition API server",
	Long: `Procurement runs the purchase requisition service: requests, their
approval chain, monthly budgets, purchase orders and goods receipts.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a config file (default: ./config.yaml or ./configs/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// bootstrap loads configs/.env, the configuration and the logger shared by every command.
func bootstrap(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	if err := godotenv.Load("configs/.env"); err != nil {
		fmt.Fprintln(os.Stderr, "No configs/.env file found or error loading it")
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}
