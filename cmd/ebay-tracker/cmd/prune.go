package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pruneDays int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete items first seen longer ago than the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		days := pruneDays
		if days == 0 {
			days = cfg.Schedule.PruneAfterDays
		}
		if days < 0 {
			return fmt.Errorf("days must not be negative")
		}

		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				log.Error("closing store", "error", err)
			}
		}()

		cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
		pruned, err := s.PruneItems(cmd.Context(), cutoff)
		if err != nil {
			return err
		}

		log.Info("prune complete", "days", days, "pruned", pruned)
		return nil
	},
}

func init() {
	pruneCmd.Flags().
		IntVar(&pruneDays, "days", 0, "retention in days (default from config)")
	rootCmd.AddCommand(pruneCmd)
}
