package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/cryptopilot/internal/di"
)

func newCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one analysis cycle and print the resulting portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := loadConfig()

			container, _, err := di.Wire(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to wire dependencies: %w", err)
			}
			defer container.Close()

			result, err := container.CycleScheduler.RunNow(context.Background())
			if err != nil {
				return fmt.Errorf("cycle failed: %w", err)
			}
			log.Info().
				Str("cycle_id", result.CycleID).
				Int("analyzed", result.Analyzed).
				Int("trades", result.Trades).
				Msg("Cycle finished")

			out, err := json.MarshalIndent(container.Ledger.Snapshot(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode portfolio: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
