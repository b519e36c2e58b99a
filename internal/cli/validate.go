package cli

import (
	"github.com/spf13/cobra"

	"phenomsim/internal/app"
)

var (
	validateDays int
	validateSeed int64
	validateJSON bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Replay a seeded run and check news/price coupling",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ValidateOptions{Days: validateDays, JSON: validateJSON}
		if cmd.Flags().Changed("seed") {
			opts.Seed = &validateSeed
		}
		return getApp().Validate(cmd.Context(), opts)
	},
}

func init() {
	validateCmd.Flags().IntVar(&validateDays, "days", 0, "Days to replay (defaults to config)")
	validateCmd.Flags().Int64Var(&validateSeed, "seed", 0, "Override simulation.seed")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the report as JSON")
}
