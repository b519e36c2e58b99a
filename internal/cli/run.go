package cli

import (
	"github.com/spf13/cobra"

	"phenomsim/internal/app"
)

var (
	runResume bool
	runID     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Advance the simulation one day per scheduler interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRunID(runID)
		if err != nil {
			return err
		}
		return getApp().Run(cmd.Context(), app.RunOptions{Resume: runResume || runID != "", RunID: id})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Continue the latest stored run")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Continue a specific stored run")
}
