// Package memory provides an in-process artifact store for tests and
// single-node deployments without Redis or Postgres.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/freeeve/terrainkit/internal/repository"
)

type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Save(_ context.Context, key string, data []byte) error {
	if key == "" {
		return repository.ErrEmptyKey
	}
	s.mu.Lock()
	s.data[key] = slices.Clone(data)
	s.mu.Unlock()
	return nil
}

func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, repository.ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(data), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys lists the stored keys of one artifact kind in sorted order.
func (s *Store) Keys(_ context.Context, kind string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.data {
		if strings.HasPrefix(k, kind+":") {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Len reports the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ repository.Store = (*Store)(nil)
