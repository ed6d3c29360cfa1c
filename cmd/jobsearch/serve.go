package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-ingest/internal/config"
	"github.com/JakeFAU/jobsearch-ingest/internal/server"
)

// runServer is swapped in tests.
var runServer = func(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	return app.Run(ctx)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and persistence workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if err := runServer(cmd.Context(), cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("server exited", zap.Error(err))
				return err
			}
			return nil
		},
	}
}
