package cmd

import (
	"github.com/spf13/cobra"

	domain "github.com/skireal/ebay-tracker/pkg/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show item statistics from a running tracker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var stats domain.Stats
		if err := apiGet(cmd.Context(), "/api/stats", nil, &stats); err != nil {
			return err
		}

		if jsonOutput() {
			return outputJSON(&stats)
		}
		return printStats(&stats)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
