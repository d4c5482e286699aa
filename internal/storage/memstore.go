package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory Store. It backs tests and the simulator,
// where durability across runs does not matter.
type MemStore struct {
	mu       sync.RWMutex
	values   map[string][]byte
	watchers watcherSet
}

func NewMemStore() *MemStore {
	return &MemStore{
		values: make(map[string][]byte),
	}
}

func (s *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("reading %s: %w", key, ErrNotFound)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemStore) Set(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("invalid key: empty")
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.values[key] = stored
	s.mu.Unlock()

	s.watchers.notify(key)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return fmt.Errorf("deleting %s: %w", key, ErrNotFound)
	}
	delete(s.values, key)
	return nil
}

func (s *MemStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch registers fn to run after every successful Set.
func (s *MemStore) Watch(fn func(key string)) (cancel func()) {
	return s.watchers.add(fn)
}
