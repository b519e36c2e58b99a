package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"phenomsim/internal/app"
)

var (
	showLimit int
	showRunID string
	showHints bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent news from a stored run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			RunID: showRunID,
			Limit: showLimit,
			Hints: showHints,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of news items to display")
	showCmd.Flags().StringVar(&showRunID, "run-id", "", "Run to show (defaults to the latest)")
	showCmd.Flags().BoolVar(&showHints, "hints", false, "Print the tutorial hint under each item")
}
