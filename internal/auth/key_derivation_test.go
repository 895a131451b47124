package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name         string
		masterSecret []byte
		purpose      string
		wantErr      error
	}{
		{name: "valid derivation", masterSecret: []byte("a-long-master-secret-for-tests"), purpose: "test-v1"},
		{name: "empty purpose is allowed", masterSecret: []byte("secret"), purpose: ""},
		{name: "empty secret", masterSecret: []byte{}, purpose: "test-v1", wantErr: ErrInvalidMasterSecret},
		{name: "nil secret", masterSecret: nil, purpose: "test-v1", wantErr: ErrInvalidMasterSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DeriveKey(tt.masterSecret, tt.purpose)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, key, DerivedKeyLength)
		})
	}
}

func TestDeriveKeyDomainSeparation(t *testing.T) {
	secret := []byte("shared-master-secret")

	a, err := DeriveKey(secret, "purpose-a")
	require.NoError(t, err)
	b, err := DeriveKey(secret, "purpose-b")
	require.NoError(t, err)
	again, err := DeriveKey(secret, "purpose-a")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)
	assert.NotEqual(t, secret, a[:len(secret)])
}

func TestDeriveSessionKey(t *testing.T) {
	key, err := DeriveSessionKey([]byte("secret"))
	require.NoError(t, err)
	direct, err := DeriveKey([]byte("secret"), purposeSessionJWT)
	require.NoError(t, err)
	assert.Equal(t, direct, key)
}
