// Package storagekeyring keeps the register in the operating system keychain.
// Take is atomic within one process only; the keychain offers no
// compare-and-delete primitive.
package storagekeyring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/openkcm/api-client/pkg/storage"
)

const DefaultService = "api-client"

type Store struct {
	service string
	now     func() time.Time

	mu sync.Mutex
}

var _ storage.Store = (*Store)(nil)

func New(service string) *Store {
	if service == "" {
		service = DefaultService
	}

	return &Store{service: service, now: time.Now}
}

// Available reports whether the keychain accepts writes.
func Available(service string) bool {
	if service == "" {
		service = DefaultService
	}

	const probe = "api-client::probe"
	if err := keyring.Set(service, probe, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(service, probe)

	return true
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.load(key)
	if err != nil {
		return nil, err
	}
	if e.Expired(s.now()) {
		_ = keyring.Delete(s.service, key)
		return nil, storage.ErrNotFound
	}

	return e.Value, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(storage.NewEntry(value, ttl, s.now()))
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(s.service, key, string(data)); err != nil {
		return fmt.Errorf("writing keyring entry: %w", err)
	}

	return nil
}

func (s *Store) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.load(key)
	if err != nil {
		return nil, err
	}
	if err := s.delete(key); err != nil {
		return nil, err
	}
	if e.Expired(s.now()) {
		return nil, storage.ErrNotFound
	}

	return e.Value, nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if err := s.delete(key); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) load(key string) (storage.Entry, error) {
	data, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return storage.Entry{}, storage.ErrNotFound
		}
		return storage.Entry{}, fmt.Errorf("reading keyring entry: %w", err)
	}

	var e storage.Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return storage.Entry{}, fmt.Errorf("decoding keyring entry: %w", err)
	}

	return e, nil
}

func (s *Store) delete(key string) error {
	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry: %w", err)
	}

	return nil
}
