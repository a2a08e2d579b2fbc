package memory

import (
	"context"
	"sync"
)

type preferenceStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func newPreferenceStore() *preferenceStore {
	return &preferenceStore{
		values: make(map[string]string),
	}
}

func (s *preferenceStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

func (s *preferenceStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

func (s *preferenceStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
