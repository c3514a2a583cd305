package storage

import (
	"sync"
)

type memoryBackend struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// NewMemoryStorage 创建内存存储，重启后数据丢失
func NewMemoryStorage() *Store {
	return newStore(&memoryBackend{
		docs: make(map[string]map[string][]byte),
	})
}

func (m *memoryBackend) init() error   { return nil }
func (m *memoryBackend) close() error  { return nil }
func (m *memoryBackend) backup() error { return nil }

func (m *memoryBackend) bucket(collection string) map[string][]byte {
	b, ok := m.docs[collection]
	if !ok {
		b = make(map[string][]byte)
		m.docs[collection] = b
	}
	return b
}

func (m *memoryBackend) insert(collection, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(collection)
	if _, exists := b[id]; exists {
		return ErrAlreadyExists
	}
	b[id] = clone(data)
	return nil
}

func (m *memoryBackend) replace(collection, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(collection)
	if _, exists := b[id]; !exists {
		return ErrNotFound
	}
	b[id] = clone(data)
	return nil
}

func (m *memoryBackend) upsert(collection, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bucket(collection)[id] = clone(data)
	return nil
}

func (m *memoryBackend) fetch(collection, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.docs[collection][id]
	if !exists {
		return nil, ErrNotFound
	}
	return clone(data), nil
}

func (m *memoryBackend) fetchAll(collection string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]byte, 0, len(m.docs[collection]))
	for _, data := range m.docs[collection] {
		out = append(out, clone(data))
	}
	return out, nil
}

func (m *memoryBackend) remove(collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[collection][id]; !exists {
		return ErrNotFound
	}
	delete(m.docs[collection], id)
	return nil
}

func clone(data []byte) []byte {
	return append([]byte(nil), data...)
}
