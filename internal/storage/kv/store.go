// Package kv defines the namespaced key-value contract that every entity in
// the service is persisted through, plus the key layout and JSON helpers.
package kv

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrUnavailable matches every failure of the underlying persistence layer.
	ErrUnavailable = errors.New("store unavailable")
)

// Entry is a single key/value pair returned by a prefix scan.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a prefix-scannable mapping from string keys to JSON documents.
//
// Set has upsert semantics. GetByPrefix returns every entry whose key starts
// with the exact prefix (no glob interpretation) and may be called
// concurrently with writes; it returns a snapshot that can miss writes that
// were not committed when the scan started. SetIfAbsent is the only atomic
// primitive: it stores the value only when the key does not exist yet and
// reports whether it did.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
	GetByPrefix(ctx context.Context, prefix string) ([]Entry, error)
	Ping(ctx context.Context) error
	Close() error
}

// UnavailableError wraps a backend failure with the operation that hit it.
type UnavailableError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps err as an UnavailableError. A nil err stays nil.
func Unavailable(backend, op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Backend: backend, Op: op, Key: key, Err: err}
}
