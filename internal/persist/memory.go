package persist

import (
	"context"
	"sync"
)

// MemoryStorage keeps blobs in a map. It backs tests and runs without a database.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
	// FailWrites makes every Set return ErrUnavailable.
	FailWrites bool
	// FailReads makes every Get return ErrUnavailable.
	FailReads bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return nil, false, ErrUnavailable
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrUnavailable
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}
