package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// AlertFunc is invoked when a job fails or panics.
type AlertFunc func(ctx context.Context, job *rivertype.JobRow, err error)

// AlertingErrorHandler logs job failures and forwards them to Notify.
type AlertingErrorHandler struct {
	Logger *slog.Logger
	Notify AlertFunc
}

func NewAlertingErrorHandler(logger *slog.Logger, notify AlertFunc) *AlertingErrorHandler {
	return &AlertingErrorHandler{Logger: logger, Notify: notify}
}

func (h *AlertingErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	h.report(ctx, job, "job failed", err, "")
	return nil
}

func (h *AlertingErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	h.report(ctx, job, "job panicked", fmt.Errorf("panic: %v", panicVal), trace)
	return nil
}

func (h *AlertingErrorHandler) report(ctx context.Context, job *rivertype.JobRow, msg string, err error, trace string) {
	if h.Logger != nil {
		attrs := []any{"job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "error", err}
		if trace != "" {
			attrs = append(attrs, "trace", trace)
		}
		h.Logger.Error(msg, attrs...)
	}
	if h.Notify != nil {
		h.Notify(ctx, job, err)
	}
}
