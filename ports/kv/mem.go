package kv

import (
	"context"
	"sync"
	"time"
)

type record struct {
	entry     Entry
	expiresAt time.Time // zero means no expiry
}

// MemStore is the in-memory Store each member runs for its owned keys.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]record
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[string]record{}}
}

func (m *MemStore) Put(_ context.Context, key string, entry Entry, opts PutOptions) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Version = 1
	if prev, ok := m.data[key]; ok && !m.expired(prev) {
		entry.Version = prev.entry.Version + 1
	}

	rec := record{entry: entry}
	if opts.TTL > 0 {
		rec.expiresAt = time.Now().Add(opts.TTL)
	}
	m.data[key] = rec
	return entry.Version, nil
}

func (m *MemStore) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.data[key]
	if !ok || m.expired(rec) {
		return Entry{}, ErrNotFound
	}
	return rec.entry, nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemStore) expired(rec record) bool {
	return !rec.expiresAt.IsZero() && time.Now().After(rec.expiresAt)
}

var _ Store = (*MemStore)(nil)
