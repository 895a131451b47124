package stats

import (
	"context"
	"testing"

	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/storage/kv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEmpty(t *testing.T) {
	got, err := NewService(kv.NewMemory()).Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, got)
}

func TestComputeCountsEventsAndCertificates(t *testing.T) {
	store := kv.NewMemory()
	ctx := context.Background()

	eventSvc := events.NewService(store, zerolog.Nop())
	issuer := certificates.NewService(store, eventSvc, certificates.Options{VerifyBaseURL: "https://x.test/v"}, zerolog.Nop())

	var firstID string
	for i := 0; i < 2; i++ {
		event, err := eventSvc.Create(ctx, events.CreateInput{Name: "E", Description: "d", Date: "2025-01-01", Organizer: "o"})
		require.NoError(t, err)
		if i == 0 {
			firstID = event.ID
		}
	}

	_, err := issuer.Issue(ctx, firstID, []certificates.Participant{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
	})
	require.NoError(t, err)

	bounced := certificates.Certificate{ID: "b1", EventID: firstID, Status: certificates.StatusBounced}
	require.NoError(t, kv.SetJSON(ctx, store, kv.CertificateKey(firstID, bounced.ID), bounced))

	got, err := NewService(store).Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalEvents: 2, TotalCertificates: 3, TotalDelivered: 2}, got)
}

func TestComputeUnavailable(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Close())

	_, err := NewService(store).Compute(context.Background())
	require.ErrorIs(t, err, kv.ErrUnavailable)
}
