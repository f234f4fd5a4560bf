package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/masarif/masarif-backend/chatservice"
	"github.com/masarif/masarif-backend/internal/config"
	"github.com/masarif/masarif-backend/internal/platform/logger"
	"github.com/masarif/masarif-backend/internal/sweeper"
)

// Standalone sweeper for deployments where the chat service runs without its
// in-process sweep loop.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	log := logger.New("sweep-worker")

	cfg, err := config.New()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, st, err := chatservice.OpenStore(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Store unavailable")
		return err
	}
	defer func() { _ = db.Close() }()

	sw := sweeper.New(st, sweeper.Config{Interval: cfg.SweepInterval}, log)
	if err := sw.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("sweeper exit")
		return err
	}
	return nil
}
