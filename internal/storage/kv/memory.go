package kv

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var errClosed = errors.New("store closed")

// Memory is an in-process Store for tests and single-node development.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, Unavailable("memory", "get", key, errClosed)
	}
	value, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(value), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Unavailable("memory", "set", key, errClosed)
	}
	m.data[key] = clone(value)
	return nil
}

func (m *Memory) SetIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, Unavailable("memory", "set_if_absent", key, errClosed)
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = clone(value)
	return true, nil
}

func (m *Memory) GetByPrefix(_ context.Context, prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, Unavailable("memory", "scan", prefix, errClosed)
	}
	entries := make([]Entry, 0)
	for key, value := range m.data {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, Entry{Key: key, Value: clone(value)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Unavailable("memory", "ping", "", errClosed)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
