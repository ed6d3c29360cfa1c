package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobsearch-ingest/internal/config"
	"github.com/JakeFAU/jobsearch-ingest/internal/server"
)

var runMigrate = func(ctx context.Context, cfg config.Config) error {
	return server.Migrate(ctx, cfg)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the vacancies and resumes tables if missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if err := runMigrate(cmd.Context(), cfg); err != nil {
				return err
			}
			logger.Info("schema migrated")
			return nil
		},
	}
}
