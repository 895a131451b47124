package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventeye/server/internal/storage/kv"
	"github.com/eventeye/server/internal/validation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *kv.Memory) {
	t.Helper()
	store := kv.NewMemory()
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, zerolog.Nop()), store
}

func validInput() CreateInput {
	return CreateInput{
		Name:        "Go Workshop",
		Description: "Hands-on concurrency",
		Date:        "2025-01-01",
		Organizer:   "Acme",
	}
}

func TestCreateStoresEvent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	input := validInput()
	input.CreatedBy = "org@example.com"
	event, err := svc.Create(ctx, input)
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)
	assert.Equal(t, EventTypeFree, event.EventType)
	assert.Equal(t, "org@example.com", event.CreatedBy)
	assert.False(t, event.CreatedAt.IsZero())

	stored, err := kv.GetJSON[Event](ctx, store, kv.EventKey(event.ID))
	require.NoError(t, err)
	assert.Equal(t, event.Name, stored.Name)
	assert.Equal(t, event.ID, stored.ID)
}

func TestCreateTrimsFields(t *testing.T) {
	svc, _ := newTestService(t)

	input := validInput()
	input.Name = "  Go Workshop  "
	input.EventType = "paid"
	event, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "Go Workshop", event.Name)
	assert.Equal(t, EventTypePaid, event.EventType)
}

func TestCreateKeepsPlainTextVerbatim(t *testing.T) {
	svc, _ := newTestService(t)

	input := validInput()
	input.Name = "  Workshop <3 Go  "
	input.Description = "Compare a < b and b > c"
	input.Organizer = "Smith & Sons"
	event, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "Workshop <3 Go", event.Name)
	assert.Equal(t, "Compare a < b and b > c", event.Description)
	assert.Equal(t, "Smith & Sons", event.Organizer)
}

func TestCreateRejectsMarkup(t *testing.T) {
	svc, store := newTestService(t)

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{name: "bold name", mutate: func(in *CreateInput) { in.Name = "<b>Go</b> Workshop" }, field: "name"},
		{name: "script description", mutate: func(in *CreateInput) { in.Description = "Intro<script>alert(1)</script>" }, field: "description"},
		{name: "tag-like organizer", mutate: func(in *CreateInput) { in.Organizer = "Ana <ana>" }, field: "organizer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := svc.Create(context.Background(), input)
			require.ErrorIs(t, err, validation.ErrValidation)
			fields := validation.Fields(err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.field, fields[0].Field)
			assert.Equal(t, "must not contain HTML markup", fields[0].Message)
		})
	}

	all, err := kv.ScanJSON[Event](context.Background(), store, kv.EventPrefix)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{name: "missing name", mutate: func(in *CreateInput) { in.Name = "" }, field: "name"},
		{name: "blank description", mutate: func(in *CreateInput) { in.Description = "   " }, field: "description"},
		{name: "missing date", mutate: func(in *CreateInput) { in.Date = "" }, field: "date"},
		{name: "missing organizer", mutate: func(in *CreateInput) { in.Organizer = "" }, field: "organizer"},
		{name: "unknown type", mutate: func(in *CreateInput) { in.EventType = "vip" }, field: "eventType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			input := validInput()
			tt.mutate(&input)

			_, err := svc.Create(context.Background(), input)
			require.Error(t, err)
			require.True(t, errors.Is(err, validation.ErrValidation))

			fields := validation.Fields(err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.field, fields[0].Field)

			entries, err := store.GetByPrefix(context.Background(), kv.EventPrefix)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "01JAAAAAAAAAAAAAAAAAAAAAAA")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetUnavailable(t *testing.T) {
	svc, store := newTestService(t)
	require.NoError(t, store.Close())

	_, err := svc.Get(context.Background(), "anything")
	require.ErrorIs(t, err, kv.ErrUnavailable)
}

func TestListNewestFirstWithCounts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	second, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, kv.CertificateKey(first.ID, "c1"), []byte(`{}`)))
	require.NoError(t, store.Set(ctx, kv.CertificateKey(first.ID, "c2"), []byte(`{}`)))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 0, list[0].CertificateCount)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, 2, list[1].CertificateCount)
}

func TestListEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
