// Package storagememory keeps the register in process memory. Nothing
// survives a restart; it backs tests and embedded hosts that bring their own
// persistence.
package storagememory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/openkcm/api-client/pkg/storage"
)

const cleanupInterval = 5 * time.Minute

type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}

	//nolint:forcetypeassert
	return slices.Clone(v.([]byte)), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(key, slices.Clone(value), ttl)

	return nil
}

func (s *Store) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	s.cache.Delete(key)

	//nolint:forcetypeassert
	return v.([]byte), nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		s.cache.Delete(key)
	}

	return nil
}
