package memstore

import (
	"context"
	"maps"
	"sync"

	"github.com/jrsteele09/rally-session/tokenstore"
)

var _ tokenstore.Backend = (*Store)(nil)

// Store is an in-memory tokenstore.Backend
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty in-memory backend
func New() *Store {
	return &Store{
		values: make(map[string]string),
	}
}

// Get returns the value stored under key
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok, nil
}

// Put stores all entries under a single lock
func (s *Store) Put(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.values, entries)
	return nil
}

// Delete removes keys under a single lock
func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.values, key) // Already doesn't exist, no error
	}
	return nil
}

// Snapshot returns a copy of every stored value
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.values)
}
