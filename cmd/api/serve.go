package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"procurement/internal/container"
	"procurement/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		db, err := database.Connect(cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()

		ctr := container.New(cfg, db, log)
		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			if err := database.Migrate(db); err != nil {
				return err
			}
			if err := ctr.Seed(cmd.Context()); err != nil {
				return err
			}
		}

		stop := make(chan struct{})
		go ctr.Hub().Run(stop)
		defer close(stop)

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      ctr.Router(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("HTTP server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-quit:
		}

		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
			return err
		}
		log.Info("server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "run migrations and seed data before serving")
}
