package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/orgball2608/fary-stories/internal/app"
	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"go.uber.org/fx"
)

func main() {
	cfg, _ := config.New()
	log := logger.New(logger.Opts{Env: cfg.App.Env, SentryDSN: cfg.App.SentryUrl})

	application := fx.New(
		fx.Logger(log),
		fx.StopTimeout(cfg.App.ShutdownTimeout),
		app.Module,
	)

	if err := application.Start(context.Background()); err != nil {
		log.Error("Failed to start application", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), application.StopTimeout())
	defer cancel()
	if err := application.Stop(ctx); err != nil {
		log.Error("Failed to stop application", "error", err)
		os.Exit(1)
	}
}
