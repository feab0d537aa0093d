package cmd

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database and apply pending migrations",
	RunE: func(*cobra.Command, []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		// Open applies pending migrations.
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		if err := s.Close(); err != nil {
			return err
		}

		log.Info("migrations applied", "path", cfg.Database.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
