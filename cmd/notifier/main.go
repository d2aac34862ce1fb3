package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	notifier "github.com/branchpulse/notifier"
	"github.com/branchpulse/notifier/config"
)

func main() {
	configuration, err := config.ReadConfiguration()
	if err != nil {
		log.Fatal().Err(err).Msg("read configuration failed")
	}
	config.Settings = configuration

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	service, err := New(ctx, &configuration)
	if err != nil {
		log.Fatal().Err(err).Msg("assemble notifier service failed")
	}

	if err := service.Start(); err != nil {
		log.Fatal().Err(err).Msg(notifier.ApiFailedToStartMsg)
	}
}
