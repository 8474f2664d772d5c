package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a process-local Store used in tests and with STORAGE_DRIVER=memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	return m.Apply(ctx, Op{Key: key, Value: value})
}

// Apply implements Store.
func (m *MemoryStore) Apply(_ context.Context, ops ...Op) error {
	if err := validateOps(ops); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		current, exists := m.data[op.Key]
		if exists && op.CreateOnly {
			return ErrKeyExists
		}
		if err := checkExpected(op, current, exists); err != nil {
			return err
		}
	}
	for _, op := range ops {
		m.data[op.Key] = append([]byte(nil), op.Value...)
	}
	return nil
}

// Scan implements Store.
func (m *MemoryStore) Scan(
	_ context.Context,
	prefix, start string,
	limit int,
	fn func(key string, value []byte) error,
) error {
	m.mu.RLock()
	keys := make([]string, 0)
	for key := range m.data {
		if strings.HasPrefix(key, prefix) && key >= start {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	values := make([][]byte, len(keys))
	for i, key := range keys {
		values[i] = append([]byte(nil), m.data[key]...)
	}
	m.mu.RUnlock()

	for i, key := range keys {
		if err := fn(key, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Set overwrites a value without any checks. Only tests use it, to simulate
// tampering with persisted data.
func (m *MemoryStore) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
