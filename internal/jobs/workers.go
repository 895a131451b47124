package jobs

import (
	"context"
	"fmt"

	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/riverqueue/river"
)

// CertificateRepairArgs runs one verification repair pass.
type CertificateRepairArgs struct {
	DryRun bool `json:"dry_run,omitempty"`
}

func (CertificateRepairArgs) Kind() string { return JobKindCertificateRepair }

type CertificateRepairWorker struct {
	river.WorkerDefaults[CertificateRepairArgs]
	Repairer *certificates.Repairer
}

func (w CertificateRepairWorker) Work(ctx context.Context, job *river.Job[CertificateRepairArgs]) error {
	if w.Repairer == nil {
		return fmt.Errorf("certificate repairer not configured")
	}
	report, err := w.Repairer.Repair(ctx, job.Args.DryRun)
	if err != nil {
		return fmt.Errorf("repair certificates: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("repair certificates: %d of %d orphans failed", report.Failed, report.Orphans)
	}
	return nil
}

// CertificateNotificationArgs carries everything the email needs so the
// worker does not read the store.
type CertificateNotificationArgs struct {
	Certificate certificates.Certificate `json:"certificate"`
	Event       events.Event             `json:"event"`
}

func (CertificateNotificationArgs) Kind() string { return JobKindCertificateNotification }

// CertificateSender delivers one certificate email.
type CertificateSender interface {
	SendCertificate(ctx context.Context, cert certificates.Certificate, event events.Event) error
}

type CertificateNotificationWorker struct {
	river.WorkerDefaults[CertificateNotificationArgs]
	Sender CertificateSender
}

func (w CertificateNotificationWorker) Work(ctx context.Context, job *river.Job[CertificateNotificationArgs]) error {
	if w.Sender == nil {
		return fmt.Errorf("certificate sender not configured")
	}
	return w.Sender.SendCertificate(ctx, job.Args.Certificate, job.Args.Event)
}

// NewWorkers registers the repair worker and, when sender is set, the
// notification worker.
func NewWorkers(repairer *certificates.Repairer, sender CertificateSender) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[CertificateRepairArgs](workers, CertificateRepairWorker{Repairer: repairer})
	if sender != nil {
		river.AddWorker[CertificateNotificationArgs](workers, CertificateNotificationWorker{Sender: sender})
	}
	return workers
}
