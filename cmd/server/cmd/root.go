package cmd

import (
	"fmt"
	"os"

	"github.com/eventeye/server/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string

	rootCmd = &cobra.Command{
		Use:   "server",
		Short: "EventEye server - event certificates with public verification",
		Long: `EventEye server lets organizers register events, issue certificates to
participants in batches and lets anyone verify a certificate by its code.

The server supports:
- Badger, Redis, PostgreSQL and in-memory key-value stores
- Organizer accounts with bearer tokens
- Certificate emails through Resend, optionally queued on River
- Prometheus metrics and OpenTelemetry tracing`,
		SilenceUsage: true,
		// Run the serve command by default if no subcommand is specified
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd.RunE(cmd, args)
		},
	}
)

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (optional, env vars override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig reads --config (if set) and the environment, then applies the
// logging flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}
