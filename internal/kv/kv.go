// Package kv provides the durable key/value stores behind the history store.
// A store holds opaque string values under string keys; callers own the
// serialization.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// ErrQuotaExceeded is returned by Set when the value does not fit the
// configured capacity.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Store is a durable string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore keeps values in process memory. It is the "memory" driver and
// the default store in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// quotaStore rejects writes whose key plus value exceed maxBytes.
type quotaStore struct {
	inner    Store
	maxBytes int
}

// WithQuota wraps inner so that Set fails with ErrQuotaExceeded once a single
// entry grows past maxBytes. A maxBytes of zero or less returns inner as is.
func WithQuota(inner Store, maxBytes int) Store {
	if maxBytes <= 0 {
		return inner
	}
	return &quotaStore{inner: inner, maxBytes: maxBytes}
}

func (q *quotaStore) Get(ctx context.Context, key string) (string, error) {
	return q.inner.Get(ctx, key)
}

func (q *quotaStore) Set(ctx context.Context, key, value string) error {
	if size := len(key) + len(value); size > q.maxBytes {
		return fmt.Errorf("%w: %d bytes for %q, limit %d", ErrQuotaExceeded, size, key, q.maxBytes)
	}
	return q.inner.Set(ctx, key, value)
}
