package storage

import (
	"sync"
	"time"
)

// memoryStore is a per-process ledger. Expired keys are dropped on lookup.
type memoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	keys map[string]time.Time
}

func newMemoryStore(opts Options) *memoryStore {
	return &memoryStore{
		ttl:  opts.TransactionTTL,
		now:  time.Now,
		keys: make(map[string]time.Time),
	}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) SeenTransaction(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.keys[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(expiry) {
		delete(m.keys, key)
		return false, nil
	}
	return true, nil
}

func (m *memoryStore) MarkTransaction(key string) error {
	m.mu.Lock()
	m.keys[key] = m.now().Add(m.ttl)
	m.mu.Unlock()
	return nil
}
