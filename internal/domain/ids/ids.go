// Package ids mints and validates the identifiers used in storage keys.
package ids

import (
	"crypto/rand"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	ulidRegex = regexp.MustCompile(`(?i)^[0-9A-HJKMNP-TV-Z]{26}$`)

	ErrInvalidULID = errors.New("invalid ULID")
	ErrInvalidUUID = errors.New("invalid UUID")
)

// NewULID generates a new ULID string. Event ids are ULIDs so that key order
// follows creation order.
func NewULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsULID returns true when value is a valid ULID (case-insensitive Crockford Base32).
func IsULID(value string) bool {
	return ulidRegex.MatchString(strings.TrimSpace(value))
}

// ValidateULID validates a ULID string.
func ValidateULID(value string) error {
	if !IsULID(value) {
		return ErrInvalidULID
	}
	return nil
}

// NewUUID returns a random (version 4) UUID used for certificate ids.
func NewUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ValidateUUID validates a UUID string in canonical form.
func ValidateUUID(value string) error {
	if _, err := uuid.Parse(value); err != nil || len(value) != 36 {
		return ErrInvalidUUID
	}
	return nil
}
