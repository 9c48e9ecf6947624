// Package kvstore persists small JSON documents under string keys.
//
// A Backend moves raw bytes. Value wraps one key with an in-memory copy and
// never surfaces persistence errors to its caller: failures are logged and
// the value degrades to its default.
package kvstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned by Backend.Load when the key has no value.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrQuotaExceeded is returned when a write would exceed the backend quota.
	ErrQuotaExceeded = errors.New("kvstore: quota exceeded")
)

// Backend is durable byte storage keyed by string.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryBackend keeps values in process memory. A positive quota bounds the
// total number of stored bytes.
type MemoryBackend struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int
	used  int
}

// NewMemoryBackend creates an in-memory backend. quota <= 0 means unlimited.
func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{
		data:  make(map[string][]byte),
		quota: quota,
	}
}

func (m *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used - len(m.data[key]) + len(data)
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	v := make([]byte, len(data))
	copy(v, data)
	m.data[key] = v
	m.used = used
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.used -= len(m.data[key])
	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func (m *MemoryBackend) Close() error { return nil }
