package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"timetrack/internal/app/server"
	"timetrack/internal/domain/auth"
	"timetrack/internal/platform/config"
	"timetrack/internal/platform/db"
	"timetrack/internal/platform/logger"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "timetrack",
		Short:         "Multi-tenant timesheet backend",
		Long:          `timetrack serves the timesheet API. Without a subcommand it runs "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newMigrateCmd(), newSeedCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, job workers and reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, cfg)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			return withPool(cmd.Context(), cfg, func(ctx context.Context, pool *pgxpool.Pool) error {
				if err := db.Migrate(ctx, pool, db.Migrations()); err != nil {
					return err
				}
				log.Info().Msg("migrations applied")
				return nil
			})
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the configured organization and admin user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			return withPool(cmd.Context(), cfg, func(ctx context.Context, pool *pgxpool.Pool) error {
				if err := db.Seed(ctx, pool, cfg, auth.HashPassword); err != nil {
					return err
				}
				log.Info().Str("organization", cfg.SeedOrgName).Msg("seed applied")
				return nil
			})
		},
	}
}

func loadConfig() config.Config {
	cfg := config.Load()
	logger.New(cfg)
	return cfg
}

func withPool(ctx context.Context, cfg config.Config, fn func(context.Context, *pgxpool.Pool) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}
