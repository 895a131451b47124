// Package jobs runs background work on River when the store is PostgreSQL:
// the periodic verification repair pass and queued certificate emails.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
)

const (
	JobKindCertificateRepair       = "certificate_repair"
	JobKindCertificateNotification = "certificate_notification"
)

const (
	RepairMaxAttempts       = 1
	NotificationMaxAttempts = 8
	DefaultMaxAttempts      = 5
)

// QueueNotifications keeps email delivery from starving the repair pass.
const QueueNotifications = "notifications"

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			// The next periodic run is the retry.
			JobKindCertificateRepair: {
				MaxAttempts: RepairMaxAttempts,
			},
			JobKindCertificateNotification: {
				MaxAttempts: NotificationMaxAttempts,
				BaseDelay:   1 * time.Minute,
				MaxDelay:    2 * time.Hour,
			},
		},
	}
}

// NextRetry doubles the kind's base delay per attempt, capped at MaxDelay.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: DefaultMaxAttempts, BaseDelay: time.Minute, MaxDelay: time.Hour}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}

// InsertOptsForKind returns default insert options for a job kind.
func InsertOptsForKind(kind string) river.InsertOpts {
	config := NewRetryPolicy().configFor(kind)
	opts := river.InsertOpts{MaxAttempts: config.MaxAttempts}
	if kind == JobKindCertificateNotification {
		opts.Queue = QueueNotifications
	}
	return opts
}

func NewClientConfig(workers *river.Workers, logger *slog.Logger, hooks []rivertype.Hook, periodicJobs []*river.PeriodicJob) *river.Config {
	policy := NewRetryPolicy()
	config := &river.Config{
		Workers:      workers,
		RetryPolicy:  policy,
		MaxAttempts:  policy.Default.MaxAttempts,
		PeriodicJobs: periodicJobs,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
			QueueNotifications: {MaxWorkers: 10},
		},
		Hooks: hooks,
	}
	if logger != nil {
		config.Logger = logger
		config.ErrorHandler = NewAlertingErrorHandler(logger, nil)
	}
	return config
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, workers *river.Workers, logger *slog.Logger, hooks []rivertype.Hook, periodicJobs []*river.PeriodicJob) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), NewClientConfig(workers, logger, hooks, periodicJobs))
}

// NewPeriodicJobs schedules the repair pass every repairInterval. A
// non-positive interval schedules nothing.
func NewPeriodicJobs(repairInterval time.Duration) []*river.PeriodicJob {
	if repairInterval <= 0 {
		return nil
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(repairInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				opts := InsertOptsForKind(JobKindCertificateRepair)
				return CertificateRepairArgs{}, &opts
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}

// Migrate applies River's own schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("init river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("migrate river schema: %w", err)
	}
	return nil
}
