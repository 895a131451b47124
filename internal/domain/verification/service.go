// Package verification answers public "is this certificate genuine" lookups.
package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/metrics"
	"github.com/eventeye/server/internal/storage/kv"
)

// ErrNotFound is returned when no record exists for a code.
var ErrNotFound = errors.New("verification code not found")

type Service struct {
	store kv.Store
}

func NewService(store kv.Store) *Service {
	return &Service{store: store}
}

// Verify returns the record stored for code. The code is matched exactly;
// strings that cannot be a generated code never reach the store.
func (s *Service) Verify(ctx context.Context, code string) (certificates.VerificationRecord, error) {
	if !certificates.IsVerificationCode(code) {
		metrics.Verifications.WithLabelValues("not_found").Inc()
		return certificates.VerificationRecord{}, ErrNotFound
	}

	record, err := kv.GetJSON[certificates.VerificationRecord](ctx, s.store, kv.VerifyKey(code))
	switch {
	case err == nil:
		metrics.Verifications.WithLabelValues("valid").Inc()
		return record, nil
	case errors.Is(err, kv.ErrNotFound):
		metrics.Verifications.WithLabelValues("not_found").Inc()
		return certificates.VerificationRecord{}, ErrNotFound
	default:
		metrics.Verifications.WithLabelValues("error").Inc()
		return certificates.VerificationRecord{}, fmt.Errorf("load verification record: %w", err)
	}
}
