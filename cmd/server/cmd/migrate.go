package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/eventeye/server/internal/config"
	"github.com/eventeye/server/internal/jobs"
	"github.com/eventeye/server/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	migrateSteps   int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back PostgreSQL schema migrations",
	Long: `Manage the schema of the postgres store backend.

The other backends need no migrations. "up" also creates River's job tables
so background jobs can run.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := postgresConfig()
		if err != nil {
			return err
		}
		if err := postgres.MigrateUp(cfg.Store.DatabaseURL, migrationsPath); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if err := jobs.Migrate(ctx, pool); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back store migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := postgresConfig()
		if err != nil {
			return err
		}
		if err := postgres.MigrateDown(cfg.Store.DatabaseURL, migrationsPath, migrateSteps); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", migrateSteps)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := postgresConfig()
		if err != nil {
			return err
		}
		status, err := postgres.MigrationStatus(cfg.Store.DatabaseURL, migrationsPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch {
		case status.Fresh:
			fmt.Fprintln(out, "no migrations applied")
		case status.Dirty:
			fmt.Fprintf(out, "version %d (dirty: a migration failed part way, fix it and force the version)\n", status.Version)
		default:
			fmt.Fprintf(out, "version %d\n", status.Version)
		}
		return nil
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (default: embedded migrations)")
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func postgresConfig() (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.Store.Backend != config.BackendPostgres || cfg.Store.DatabaseURL == "" {
		return config.Config{}, fmt.Errorf("migrations require STORE_BACKEND=%s and DATABASE_URL", config.BackendPostgres)
	}
	return cfg, nil
}
