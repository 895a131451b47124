package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DerivedKeyLength fits HMAC-SHA256.
const DerivedKeyLength = 32

const purposeSessionJWT = "eventeye-session-jwt-v1"

var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey expands masterSecret into a key bound to purpose with
// HKDF-SHA256. Different purposes yield independent keys.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	key := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSessionKey derives the key that signs bearer tokens.
func DeriveSessionKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeSessionJWT)
}
