package store

import (
	"context"
	"sync"
)

// MemoryStore — хранилище в памяти процесса.
// Используется по умолчанию и в тестах.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
	open    bool
}

// NewMemoryStore создаёт новый MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string][]byte)}
}

// Open реализует Store.
func (s *MemoryStore) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

// Close реализует Store. Данные сохраняются до следующего Open.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// Get реализует Store.
func (s *MemoryStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, ErrClosed
	}

	v, ok := s.buckets[bucket][key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

// Set реализует Store.
func (s *MemoryStore) Set(_ context.Context, bucket, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrClosed
	}

	b, ok := s.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		s.buckets[bucket] = b
	}
	b[key] = clone(value)
	return nil
}

// List реализует Store.
func (s *MemoryStore) List(_ context.Context, bucket string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, ErrClosed
	}

	out := make(map[string][]byte, len(s.buckets[bucket]))
	for k, v := range s.buckets[bucket] {
		out[k] = clone(v)
	}
	return out, nil
}

// Delete реализует Store.
func (s *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrClosed
	}

	if _, ok := s.buckets[bucket][key]; !ok {
		return ErrNotFound
	}
	delete(s.buckets[bucket], key)
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
