package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Useful for tests and
// single-node runs without Redis.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero = never
}

// NewMemoryStore creates an in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem)}
}

// Set stores a blob under key with expiration (0 = no expiry).
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	var exp time.Time
	if expiration > 0 {
		exp = time.Now().Add(expiration)
	}

	m.mu.Lock()
	m.items[key] = memoryItem{value: cp, expiresAt: exp}
	m.mu.Unlock()
	return nil
}

// Get fetches a blob by key; ErrCacheMiss when absent or expired.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if !it.expiresAt.IsZero() && time.Now().After(it.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}

	cp := make([]byte, len(it.value))
	copy(cp, it.value)
	return cp, nil
}

// Delete removes keys.
func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}

// Exists reports whether key is present and not expired.
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if err == ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
