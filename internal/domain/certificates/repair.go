package certificates

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/metrics"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/rs/zerolog"
)

// RepairReport summarizes one repair pass.
type RepairReport struct {
	Scanned  int  `json:"scanned"`
	Orphans  int  `json:"orphans"`
	Repaired int  `json:"repaired"`
	Skipped  int  `json:"skipped"`
	Failed   int  `json:"failed"`
	DryRun   bool `json:"dryRun"`
}

// Repairer writes the missing verification record of certificates whose
// issuance stopped between the certificate write and the record write.
type Repairer struct {
	store  kv.Store
	events EventSource
	logger zerolog.Logger
}

func NewRepairer(store kv.Store, events EventSource, logger zerolog.Logger) *Repairer {
	return &Repairer{
		store:  store,
		events: events,
		logger: logger.With().Str("component", "certificate_repair").Logger(),
	}
}

// Repair scans every certificate. An orphan is repaired only when its code
// reservation names it; anything else is reported as skipped. With dryRun
// set nothing is written.
func (r *Repairer) Repair(ctx context.Context, dryRun bool) (RepairReport, error) {
	report := RepairReport{DryRun: dryRun}

	certs, err := kv.ScanJSON[Certificate](ctx, r.store, kv.CertificatePrefix)
	if err != nil {
		return report, fmt.Errorf("scan certificates: %w", err)
	}

	eventCache := make(map[string]events.Event)
	for _, cert := range certs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		exists, err := kv.Exists(ctx, r.store, kv.VerifyKey(cert.VerificationCode))
		if err != nil {
			return report, fmt.Errorf("check verification record: %w", err)
		}
		if exists {
			continue
		}
		report.Orphans++

		log := r.logger.With().Str("cert_id", cert.ID).Str("event_id", cert.EventID).Logger()

		owner, err := kv.GetJSON[reservation](ctx, r.store, kv.CodeKey(cert.VerificationCode))
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return report, fmt.Errorf("load code reservation: %w", err)
		}
		if err != nil || owner.CertID != cert.ID {
			report.Skipped++
			metrics.RepairedCertificates.WithLabelValues("skipped").Inc()
			log.Warn().Msg("orphan certificate does not own its verification code")
			continue
		}

		if dryRun {
			log.Info().Msg("orphan certificate found (dry run)")
			continue
		}

		event, ok := eventCache[cert.EventID]
		if !ok {
			event, err = r.events.Get(ctx, cert.EventID)
			if err != nil {
				report.Failed++
				metrics.RepairedCertificates.WithLabelValues("failed").Inc()
				log.Error().Err(err).Msg("cannot load event for orphan certificate")
				continue
			}
			eventCache[cert.EventID] = event
		}

		if _, err := kv.SetJSONIfAbsent(ctx, r.store, kv.VerifyKey(cert.VerificationCode), NewVerificationRecord(cert, event)); err != nil {
			report.Failed++
			metrics.RepairedCertificates.WithLabelValues("failed").Inc()
			log.Error().Err(err).Msg("cannot write verification record")
			continue
		}
		report.Repaired++
		metrics.RepairedCertificates.WithLabelValues("repaired").Inc()
		log.Info().Msg("verification record restored")
	}

	r.logger.Info().
		Int("scanned", report.Scanned).
		Int("orphans", report.Orphans).
		Int("repaired", report.Repaired).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Bool("dry_run", dryRun).
		Msg("certificate repair finished")

	return report, nil
}
