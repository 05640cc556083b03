package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/cryptopilot/internal/di"
	"github.com/aristath/cryptopilot/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis loop and the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

// runServe wires dependencies, starts the background cycle driver, the cron
// scheduler and the HTTP server, then waits for SIGINT/SIGTERM.
func runServe() error {
	cfg, log := loadConfig()

	log.Info().
		Str("provider", string(cfg.Trading.DecisionSource)).
		Str("mode", string(cfg.Trading.Mode)).
		Msg("Starting CryptoPilot")

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container.CronScheduler.Start()

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		if err := container.Driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Cycle driver stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	container.CronScheduler.Stop()

	// In-flight cycles run to completion
	<-driverDone
	container.CycleScheduler.Wait()

	log.Info().Msg("Server stopped")
	return nil
}
