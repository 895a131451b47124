package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// GetJSON loads key and decodes it into T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var out T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %q: %w", key, err)
	}
	return out, nil
}

// SetJSON encodes value and upserts it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// SetJSONIfAbsent encodes value and stores it only if key is new.
func SetJSONIfAbsent(ctx context.Context, s Store, key string, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %q: %w", key, err)
	}
	return s.SetIfAbsent(ctx, key, raw)
}

// ScanJSON decodes every value under prefix into T.
func ScanJSON[T any](ctx context.Context, s Store, prefix string) ([]T, error) {
	entries, err := s.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, entry := range entries {
		var item T
		if err := json.Unmarshal(entry.Value, &item); err != nil {
			return nil, fmt.Errorf("decode %q: %w", entry.Key, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// Exists reports whether key is present.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}
