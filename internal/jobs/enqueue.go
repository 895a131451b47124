package jobs

import (
	"context"
	"fmt"

	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/metrics"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// Inserter is the part of *river.Client used to enqueue jobs.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// NotificationQueue defers certificate emails to a River worker.
type NotificationQueue struct {
	client Inserter
}

func NewNotificationQueue(client Inserter) *NotificationQueue {
	return &NotificationQueue{client: client}
}

func (q *NotificationQueue) CertificateIssued(ctx context.Context, cert certificates.Certificate, event events.Event) error {
	opts := InsertOptsForKind(JobKindCertificateNotification)
	if _, err := q.client.Insert(ctx, CertificateNotificationArgs{Certificate: cert, Event: event}, &opts); err != nil {
		return fmt.Errorf("enqueue certificate notification: %w", err)
	}
	metrics.Notifications.WithLabelValues("queued").Inc()
	return nil
}
