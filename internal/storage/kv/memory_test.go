package kv_test

import (
	"context"
	"testing"

	"github.com/eventeye/server/internal/storage/kv"
	"github.com/eventeye/server/internal/storage/kv/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return kv.NewMemory()
	})
}

func TestMemoryClosedIsUnavailable(t *testing.T) {
	s := kv.NewMemory()
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "event:1")
	require.ErrorIs(t, err, kv.ErrUnavailable)

	var unavailable *kv.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "memory", unavailable.Backend)
	assert.Equal(t, "get", unavailable.Op)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	value := []byte(`{"a":1}`)
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestKeyLayout(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"event", kv.EventKey("01J"), "event:01J"},
		{"certificate", kv.CertificateKey("01J", "c1"), "cert:01J:c1"},
		{"event certificates", kv.EventCertificatesPrefix("01J"), "cert:01J:"},
		{"verify", kv.VerifyKey("ABCDEF123456"), "verify:ABCDEF123456"},
		{"code reservation", kv.CodeKey("ABCDEF123456"), "code:ABCDEF123456"},
		{"idempotency", kv.IdempotencyKey("01J", "tok"), "idem:01J:tok"},
		{"user", kv.UserKey(" Alice@Example.com "), "user:alice@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

type record struct {
	Name string `json:"name"`
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()

	require.NoError(t, kv.SetJSON(ctx, s, "event:1", record{Name: "Workshop"}))
	got, err := kv.GetJSON[record](ctx, s, "event:1")
	require.NoError(t, err)
	assert.Equal(t, "Workshop", got.Name)

	stored, err := kv.SetJSONIfAbsent(ctx, s, "event:1", record{Name: "Other"})
	require.NoError(t, err)
	assert.False(t, stored)

	require.NoError(t, kv.SetJSON(ctx, s, "event:2", record{Name: "Talk"}))
	all, err := kv.ScanJSON[record](ctx, s, kv.EventPrefix)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	exists, err := kv.Exists(ctx, s, "event:3")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = kv.GetJSON[record](ctx, s, "event:3")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}
