package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventeye/server/internal/config"
	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/storage"
	"github.com/spf13/cobra"
)

var repairDryRun bool

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Restore verification records missing after interrupted issuance",
	Long: `Scan every certificate and rewrite the verification record of any
certificate whose issuance stopped after the certificate was stored.

Prints a JSON report. With --dry-run nothing is written.

Examples:
  server repair --dry-run
  server repair --config /etc/eventeye/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger := config.NewLogger(cfg.Logging)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		backend, err := storage.Open(ctx, cfg.Store, logger)
		if err != nil {
			return fmt.Errorf("store connection failed: %w", err)
		}
		defer func() { _ = backend.Close() }()

		repairer := certificates.NewRepairer(backend, events.NewService(backend, logger), logger)
		report, err := repairer.Repair(ctx, repairDryRun)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	repairCmd.Flags().BoolVar(&repairDryRun, "dry-run", false, "report orphans without writing")
}
