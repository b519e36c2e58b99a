package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"phenomsim/internal/app"
)

var (
	simulateDays   int
	simulateSeed   int64
	simulateQuiet  bool
	simulateResume bool
	simulateRunID  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a batch of simulated days and print the news feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRunID(simulateRunID)
		if err != nil {
			return err
		}
		opts := app.SimulateOptions{
			Days:   simulateDays,
			Quiet:  simulateQuiet,
			Resume: simulateResume || simulateRunID != "",
			RunID:  id,
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed = &simulateSeed
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateDays, "days", 0, "Days to simulate (defaults to config)")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 0, "Override simulation.seed")
	simulateCmd.Flags().BoolVar(&simulateQuiet, "quiet", false, "Only print the final summary")
	simulateCmd.Flags().BoolVar(&simulateResume, "resume", false, "Continue the latest stored run")
	simulateCmd.Flags().StringVar(&simulateRunID, "run-id", "", "Continue a specific stored run")
}

func parseRunID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --run-id value: %w", err)
	}
	return id, nil
}
