package main

import (
	"github.com/spf13/cobra"

	"github.com/d60-Lab/activity-feed/pkg/database"
	"github.com/d60-Lab/activity-feed/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			logger.Info("migration done")
			return nil
		},
	}
}
