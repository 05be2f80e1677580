// Package memory implements ports.Storage in process memory. Records do
// not survive a restart; it suits tests and ephemeral hosts.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bft-labs/courier/internal/domain"
)

// Storage is a map-backed ports.Storage safe for concurrent use.
type Storage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStorage creates an empty Storage.
func NewStorage() *Storage {
	return &Storage{data: make(map[string][]byte)}
}

func (s *Storage) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *Storage) Set(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)
	return nil
}

func (s *Storage) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

func (s *Storage) ListKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
