// Package stats computes dashboard totals from the store.
package stats

import (
	"context"
	"fmt"

	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/storage/kv"
)

type Stats struct {
	TotalEvents       int `json:"totalEvents"`
	TotalCertificates int `json:"totalCertificates"`
	TotalDelivered    int `json:"totalDelivered"`
}

type Service struct {
	store kv.Store
}

func NewService(store kv.Store) *Service {
	return &Service{store: store}
}

// Compute counts events and certificates with full prefix scans. Each scan is
// a snapshot, so the totals may disagree briefly under concurrent issuance.
func (s *Service) Compute(ctx context.Context) (Stats, error) {
	eventEntries, err := s.store.GetByPrefix(ctx, kv.EventPrefix)
	if err != nil {
		return Stats{}, fmt.Errorf("scan events: %w", err)
	}

	certs, err := kv.ScanJSON[certificates.Certificate](ctx, s.store, kv.CertificatePrefix)
	if err != nil {
		return Stats{}, fmt.Errorf("scan certificates: %w", err)
	}

	out := Stats{
		TotalEvents:       len(eventEntries),
		TotalCertificates: len(certs),
	}
	for _, cert := range certs {
		if cert.Status == certificates.StatusDelivered {
			out.TotalDelivered++
		}
	}
	return out, nil
}
