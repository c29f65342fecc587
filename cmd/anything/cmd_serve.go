package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/anything-backend/internal/app"
)

// serveCmd runs the HTTP API together with the job worker.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and job worker",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := app.LoadConfig()
	log, err := app.NewLogger(cfg.LogMode)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, log, cfg)
	if err != nil {
		log.Error("app init failed", "error", err)
		log.Sync()
		return err
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		log.Error("app start failed", "error", err)
		return err
	}
	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("server stopped", "error", err)
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := app.LoadConfig()
	log, err := app.NewLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	pg, err := app.OpenDB(log, cfg, true)
	if err != nil {
		return err
	}
	defer pg.Close()
	log.Info("migrations applied")
	return nil
}

func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}
