package certificates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/domain/ids"
	"github.com/eventeye/server/internal/metrics"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/eventeye/server/internal/telemetry"
	"github.com/eventeye/server/internal/validation"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/eventeye/server/internal/domain/certificates"

const (
	DefaultMaxCodeAttempts = 5
	DefaultConcurrency     = 8
	DefaultMaxParticipants = 1000
	// DefaultIdempotencyLease must outlive any request deadline.
	DefaultIdempotencyLease = 5 * time.Minute
)

// EventSource resolves the event a batch is issued for.
type EventSource interface {
	Get(ctx context.Context, id string) (events.Event, error)
}

// Notifier is told about every committed certificate. Errors are logged and
// never undo the issuance.
type Notifier interface {
	CertificateIssued(ctx context.Context, cert Certificate, event events.Event) error
}

type Options struct {
	// VerifyBaseURL prefixes every certificate URL: {VerifyBaseURL}/{code}.
	VerifyBaseURL   string
	MaxCodeAttempts int
	Concurrency     int
	MaxParticipants int
	// IdempotencyLease is how long a claimed token without a stored
	// certificate is treated as in flight before it may be taken over.
	IdempotencyLease time.Duration
}

type Service struct {
	store    kv.Store
	events   EventSource
	notifier Notifier
	codes    CodeGenerator
	opts     Options
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(store kv.Store, events EventSource, opts Options, logger zerolog.Logger) *Service {
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxParticipants <= 0 {
		opts.MaxParticipants = DefaultMaxParticipants
	}
	if opts.IdempotencyLease <= 0 {
		opts.IdempotencyLease = DefaultIdempotencyLease
	}
	opts.VerifyBaseURL = strings.TrimRight(opts.VerifyBaseURL, "/")

	return &Service{
		store:  store,
		events: events,
		codes:  NewVerificationCode,
		opts:   opts,
		logger: logger.With().Str("component", "certificates").Logger(),
		tracer: telemetry.Tracer(tracerName),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier registers n to be called after each committed certificate.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Issue creates one certificate per participant of eventID.
//
// Request-level problems (blank event id, empty or oversized batch, unknown
// event) return an error and write nothing. Otherwise every participant gets
// an Outcome and the error is nil even if some participants failed.
func (s *Service) Issue(ctx context.Context, eventID string, participants []Participant) (BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "certificates.Issue", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.Int("participants.count", len(participants)),
	))
	defer span.End()

	if strings.TrimSpace(eventID) == "" {
		return BatchResult{}, validation.Required("eventId")
	}
	if len(participants) == 0 {
		return BatchResult{}, validation.Error{Field: "participants", Message: "must contain at least 1 items"}
	}
	if len(participants) > s.opts.MaxParticipants {
		return BatchResult{}, validation.Error{
			Field:   "participants",
			Message: fmt.Sprintf("must contain at most %d items", s.opts.MaxParticipants),
		}
	}

	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "event lookup failed")
		return BatchResult{}, err
	}

	metrics.IssuanceBatchSize.Observe(float64(len(participants)))

	batch := make([]Participant, len(participants))
	copy(batch, participants)
	outcomes := make([]Outcome, len(batch))
	pending := s.screen(batch, outcomes)

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, i := range pending {
		g.Go(func() error {
			outcomes[i] = s.issueOne(ctx, event, i, batch[i])
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{EventID: event.ID, Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeIssued:
			result.Issued++
		case OutcomeDuplicate:
			result.Duplicates++
		case OutcomeRejected:
			result.Rejected++
			metrics.IssuanceFailures.WithLabelValues("rejected").Inc()
		case OutcomeFailed:
			result.Failed++
			metrics.IssuanceFailures.WithLabelValues(failureReason(o.err)).Inc()
		}
	}

	span.SetAttributes(
		attribute.Int("certificates.issued", result.Issued),
		attribute.Int("certificates.duplicates", result.Duplicates),
		attribute.Int("certificates.rejected", result.Rejected),
		attribute.Int("certificates.failed", result.Failed),
	)
	if result.Failed > 0 {
		span.SetStatus(codes.Error, "some participants failed")
	}

	s.logger.Info().
		Str("event_id", event.ID).
		Int("issued", result.Issued).
		Int("duplicates", result.Duplicates).
		Int("rejected", result.Rejected).
		Int("failed", result.Failed).
		Msg("certificate batch processed")

	return result, nil
}

// screen validates every participant, filling outcomes for the rejected ones,
// and returns the indexes that should be issued.
func (s *Service) screen(participants []Participant, outcomes []Outcome) []int {
	pending := make([]int, 0, len(participants))
	seenKeys := make(map[string]int)

	for i, p := range participants {
		p.Name = strings.TrimSpace(p.Name)
		p.Email = strings.TrimSpace(p.Email)
		participants[i] = p

		if err := validation.Struct(p); err != nil {
			outcomes[i] = rejected(i, p, err)
			continue
		}
		if p.IdempotencyKey != "" {
			if first, dup := seenKeys[p.IdempotencyKey]; dup {
				err := validation.Error{
					Field:   "idempotencyKey",
					Message: fmt.Sprintf("repeats the key of participant %d", first),
				}
				outcomes[i] = rejected(i, p, err)
				continue
			}
			seenKeys[p.IdempotencyKey] = i
		}
		pending = append(pending, i)
	}
	return pending
}

func (s *Service) issueOne(ctx context.Context, event events.Event, index int, p Participant) Outcome {
	if err := ctx.Err(); err != nil {
		return failed(index, p, err)
	}

	certID, err := ids.NewUUID()
	if err != nil {
		return failed(index, p, fmt.Errorf("generate certificate id: %w", err))
	}

	if p.IdempotencyKey != "" {
		existing, claimed, err := s.claimIdempotencyKey(ctx, event.ID, p.IdempotencyKey, certID)
		if err != nil {
			return failed(index, p, err)
		}
		if !claimed {
			return Outcome{Index: index, Name: p.Name, Email: p.Email, Status: OutcomeDuplicate, Certificate: &existing}
		}
	}

	cert, err := s.commit(ctx, event, certID, p)
	if err != nil {
		out := failed(index, p, err)
		if errors.Is(err, ErrVerificationPending) {
			out.Certificate = &cert
		}
		s.logger.Error().Err(err).
			Str("event_id", event.ID).
			Str("cert_id", certID).
			Int("index", index).
			Msg("certificate issuance failed")
		return out
	}

	metrics.CertificatesIssued.Inc()
	s.notify(ctx, cert, event)

	return Outcome{Index: index, Name: p.Name, Email: p.Email, Status: OutcomeIssued, Certificate: &cert}
}

// commit reserves a fresh verification code and writes the certificate
// followed by its verification record. Only the holder of code:{code} ever
// writes verify:{code}.
func (s *Service) commit(ctx context.Context, event events.Event, certID string, p Participant) (Certificate, error) {
	for attempt := 1; attempt <= s.opts.MaxCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return Certificate{}, fmt.Errorf("generate verification code: %w", err)
		}

		taken, err := kv.Exists(ctx, s.store, kv.VerifyKey(code))
		if err != nil {
			return Certificate{}, fmt.Errorf("check verification code: %w", err)
		}
		if taken {
			metrics.CodeCollisions.Inc()
			continue
		}

		now := s.now()
		reserved, err := kv.SetJSONIfAbsent(ctx, s.store, kv.CodeKey(code), reservation{
			CertID:     certID,
			EventID:    event.ID,
			ReservedAt: now,
		})
		if err != nil {
			return Certificate{}, fmt.Errorf("reserve verification code: %w", err)
		}
		if !reserved {
			metrics.CodeCollisions.Inc()
			continue
		}

		cert := Certificate{
			ID:               certID,
			EventID:          event.ID,
			ParticipantName:  p.Name,
			ParticipantEmail: p.Email,
			VerificationCode: code,
			Status:           StatusDelivered,
			CreatedAt:        now,
			CertificateURL:   s.certificateURL(code),
			IdempotencyKey:   p.IdempotencyKey,
		}
		if err := kv.SetJSON(ctx, s.store, kv.CertificateKey(event.ID, certID), cert); err != nil {
			return Certificate{}, fmt.Errorf("store certificate: %w", err)
		}
		if err := kv.SetJSON(ctx, s.store, kv.VerifyKey(code), NewVerificationRecord(cert, event)); err != nil {
			return cert, fmt.Errorf("%w: %w", ErrVerificationPending, err)
		}
		return cert, nil
	}
	return Certificate{}, ErrCodeExhausted
}

// claimIdempotencyKey binds token to certID. When the token already points
// at a stored certificate that certificate is returned with claimed=false.
// A token whose certificate is missing is still in flight until its lease
// runs out; after that exactly one caller may take it over.
func (s *Service) claimIdempotencyKey(ctx context.Context, eventID, token, certID string) (Certificate, bool, error) {
	key := kv.IdempotencyKey(eventID, token)
	record := idempotencyRecord{CertID: certID, CreatedAt: s.now()}

	stored, err := kv.SetJSONIfAbsent(ctx, s.store, key, record)
	if err != nil {
		return Certificate{}, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if stored {
		return Certificate{}, true, nil
	}

	previous, err := kv.GetJSON[idempotencyRecord](ctx, s.store, key)
	if err != nil {
		return Certificate{}, false, fmt.Errorf("load idempotency key: %w", err)
	}
	existing, err := kv.GetJSON[Certificate](ctx, s.store, kv.CertificateKey(eventID, previous.CertID))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return Certificate{}, false, fmt.Errorf("load certificate for idempotency key: %w", err)
	}

	if record.CreatedAt.Sub(previous.CreatedAt) < s.opts.IdempotencyLease {
		return Certificate{}, false, ErrIssuanceInProgress
	}

	won, err := kv.SetJSONIfAbsent(ctx, s.store, kv.TakeoverKey(eventID, token, previous.CertID), record)
	if err != nil {
		return Certificate{}, false, fmt.Errorf("take over idempotency key: %w", err)
	}
	if !won {
		return Certificate{}, false, ErrIssuanceInProgress
	}

	s.logger.Warn().Str("event_id", eventID).Str("stale_cert_id", previous.CertID).
		Msg("idempotency key lease expired without a certificate; reissuing")
	if err := kv.SetJSON(ctx, s.store, key, record); err != nil {
		return Certificate{}, false, fmt.Errorf("rebind idempotency key: %w", err)
	}
	return Certificate{}, true, nil
}

func (s *Service) notify(ctx context.Context, cert Certificate, event events.Event) {
	if s.notifier == nil {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return
	}
	if err := s.notifier.CertificateIssued(ctx, cert, event); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Str("cert_id", cert.ID).Msg("participant notification failed")
	}
}

func (s *Service) certificateURL(code string) string {
	return s.opts.VerifyBaseURL + "/" + code
}

// ListByEvent returns the certificates of eventID, newest first.
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]Certificate, error) {
	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}

	certs, err := kv.ScanJSON[Certificate](ctx, s.store, kv.EventCertificatesPrefix(eventID))
	if err != nil {
		return nil, fmt.Errorf("list certificates for %s: %w", eventID, err)
	}
	sort.SliceStable(certs, func(i, j int) bool {
		if certs[i].CreatedAt.Equal(certs[j].CreatedAt) {
			return certs[i].ID < certs[j].ID
		}
		return certs[i].CreatedAt.After(certs[j].CreatedAt)
	})
	return certs, nil
}

func rejected(index int, p Participant, err error) Outcome {
	return Outcome{
		Index:  index,
		Name:   p.Name,
		Email:  p.Email,
		Status: OutcomeRejected,
		Error:  err.Error(),
		Errors: validation.Fields(err),
		err:    err,
	}
}

// failed keeps backend detail out of Error; the full error goes to the log.
func failed(index int, p Participant, err error) Outcome {
	return Outcome{
		Index:  index,
		Name:   p.Name,
		Email:  p.Email,
		Status: OutcomeFailed,
		Error:  failureMessage(err),
		err:    err,
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrCodeExhausted):
		return ErrCodeExhausted.Error()
	case errors.Is(err, ErrVerificationPending):
		return ErrVerificationPending.Error()
	case errors.Is(err, ErrIssuanceInProgress):
		return ErrIssuanceInProgress.Error()
	case errors.Is(err, kv.ErrUnavailable):
		return kv.ErrUnavailable.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled"
	default:
		return "internal error"
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrCodeExhausted):
		return "code_exhausted"
	case errors.Is(err, ErrVerificationPending):
		return "partial_write"
	case errors.Is(err, ErrIssuanceInProgress):
		return "in_progress"
	case errors.Is(err, kv.ErrUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
