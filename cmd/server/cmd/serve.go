package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventeye/server/internal/api"
	"github.com/eventeye/server/internal/auth"
	"github.com/eventeye/server/internal/config"
	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/domain/stats"
	"github.com/eventeye/server/internal/domain/users"
	"github.com/eventeye/server/internal/domain/verification"
	"github.com/eventeye/server/internal/email"
	"github.com/eventeye/server/internal/jobs"
	"github.com/eventeye/server/internal/metrics"
	"github.com/eventeye/server/internal/storage"
	"github.com/eventeye/server/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the EventEye HTTP server",
	Long: `Start the EventEye HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Open the configured store (badger, redis, postgres or memory)
- Start River workers for repair and email jobs when JOBS_ENABLED is set
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug

  # Start with custom config file
  server serve --config /etc/eventeye/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("environment", cfg.Environment).Msg("starting EventEye server")

	metrics.Init(Version, GitCommit, BuildDate)
	logger.Info().Str("version", Version).Msg("metrics initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing setup failed: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	openCtx, openCancel := context.WithTimeout(ctx, 10*time.Second)
	backend, err := storage.Open(openCtx, cfg.Store, logger)
	openCancel()
	if err != nil {
		return fmt.Errorf("store connection failed: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error().Err(err).Msg("store close error")
		}
	}()

	if backend.Pool != nil {
		poolCollector := metrics.NewPoolCollector(backend.Pool)
		go poolCollector.Start(ctx, 15*time.Second)
		defer poolCollector.Stop()
		logger.Info().Msg("database metrics collector started")
	}

	tokens, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	mailer, err := email.NewService(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("email setup failed: %w", err)
	}

	eventsService := events.NewService(backend, logger)
	certificatesService := certificates.NewService(backend, eventsService, certificates.Options{
		VerifyBaseURL:   cfg.Certificates.VerifyBaseURL,
		MaxCodeAttempts: cfg.Certificates.MaxCodeAttempts,
		Concurrency:     cfg.Certificates.Concurrency,
		MaxParticipants: cfg.Certificates.MaxParticipants,
	}, logger)

	if cfg.Jobs.Enabled {
		repairer := certificates.NewRepairer(backend, eventsService, logger)
		riverClient, err := startJobs(ctx, cfg, backend, repairer, mailer, logger)
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := riverClient.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("river workers shutdown error")
			} else {
				logger.Info().Msg("river workers stopped")
			}
		}()
		certificatesService.SetNotifier(jobs.NewNotificationQueue(riverClient))
	} else {
		certificatesService.SetNotifier(mailer)
	}

	router := api.NewRouter(api.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Store:        backend,
		Backend:      backend.Name,
		Pool:         backend.Pool,
		Events:       eventsService,
		Certificates: certificatesService,
		Verification: verification.NewService(backend),
		Stats:        stats.NewService(backend),
		Users:        users.NewService(backend, logger),
		Tokens:       tokens,
		Version:      Version,
		GitCommit:    GitCommit,
		BuildDate:    BuildDate,
		StartTime:    time.Now(),
	})
	defer router.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler,
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

// startJobs migrates River's tables and starts its workers on the store's
// PostgreSQL pool.
func startJobs(ctx context.Context, cfg config.Config, backend *storage.Backend, repairer *certificates.Repairer, mailer *email.Service, logger zerolog.Logger) (*river.Client[pgx.Tx], error) {
	if backend.Pool == nil {
		return nil, fmt.Errorf("background jobs require the %s store", config.BackendPostgres)
	}
	if err := jobs.Migrate(ctx, backend.Pool); err != nil {
		return nil, err
	}

	riverLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	client, err := jobs.NewClient(
		backend.Pool,
		jobs.NewWorkers(repairer, mailer),
		riverLogger,
		[]rivertype.Hook{metrics.NewRiverMetricsHook()},
		jobs.NewPeriodicJobs(cfg.Jobs.RepairInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("river client setup failed: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("river workers failed to start: %w", err)
	}

	logger.Info().Dur("repair_interval", cfg.Jobs.RepairInterval).Msg("river background job workers started")
	return client, nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
