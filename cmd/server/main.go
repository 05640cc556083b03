// Package main is the entry point for CryptoPilot, a paper-trading bot that
// analyses a crypto universe on a fixed cadence and streams its decisions to
// connected dashboards.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/cryptopilot/internal/config"
	"github.com/aristath/cryptopilot/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	cmd := &cobra.Command{
		Use:          "cryptopilot",
		Short:        "Automated crypto analysis and paper trading",
		SilenceUsage: true,
		// Running without a subcommand starts the server
		RunE: serve.RunE,
	}

	cmd.AddCommand(
		serve,
		newCycleCmd(),
		newVersionCmd(),
	)

	return cmd
}

// loadConfig loads configuration and builds the logger it asks for.
// Configuration errors are fatal.
func loadConfig() (*config.Config, zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	return cfg, log
}
