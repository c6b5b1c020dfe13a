// Package memstore provides an in-process ports.KeyValueStore.
package memstore

import (
	"context"
	"sync"

	"github.com/target/mmk-console/internal/ports"
)

var _ ports.KeyValueStore = (*Store)(nil)

// Store keeps keys in a map guarded by a mutex. The zero value is not usable; use New.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// New returns an empty Store, optionally seeded with initial entries.
func New(seed map[string]string) *Store {
	data := make(map[string]string, len(seed))
	for k, v := range seed {
		data[k] = v
	}
	return &Store{data: data}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Snapshot returns a copy of all entries.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}
