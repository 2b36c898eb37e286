package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/app"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	runErr := application.Start(ctx)
	// Flush buffered captions and queued events even when a server failed.
	application.Shutdown()

	if runErr != nil {
		log.Error().Err(runErr).Msg("service stopped with error")
		os.Exit(1)
	}
}
