// Package storagefile persists the register as a single JSON document on
// disk. Every operation holds an exclusive file lock, so separate processes
// sharing the directory observe Take atomically.
package storagefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/openkcm/api-client/pkg/storage"
)

const (
	FileName = "store.json"

	lockFileName = ".lock"
	lockRetry    = 10 * time.Millisecond
	dirMode      = 0o700
)

// LockTimeout bounds how long an operation waits for the file lock.
var LockTimeout = 2 * time.Second

var ErrLockTimeout = errors.New("timed out acquiring the storage lock")

type Store struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

var _ storage.Store = (*Store)(nil)

type Option func(*Store)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DefaultDir returns the per-user directory used when none is configured.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "api-client")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".api-client")
	}

	return filepath.Join(os.TempDir(), "api-client")
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.locked(ctx, func(all map[string]storage.Entry) (bool, error) {
		e, ok := all[key]
		if !ok || e.Expired(s.now()) {
			return false, storage.ErrNotFound
		}
		value = slices.Clone(e.Value)

		return false, nil
	})

	return value, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.locked(ctx, func(all map[string]storage.Entry) (bool, error) {
		all[key] = storage.NewEntry(slices.Clone(value), ttl, s.now())
		return true, nil
	})
}

func (s *Store) Take(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.locked(ctx, func(all map[string]storage.Entry) (bool, error) {
		e, ok := all[key]
		if !ok {
			return false, storage.ErrNotFound
		}
		delete(all, key)
		if e.Expired(s.now()) {
			return true, storage.ErrNotFound
		}
		value = e.Value

		return true, nil
	})

	return value, err
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return s.locked(ctx, func(all map[string]storage.Entry) (bool, error) {
		changed := false
		for _, key := range keys {
			if _, ok := all[key]; ok {
				delete(all, key)
				changed = true
			}
		}

		return changed, nil
	})
}

// locked runs fn with the document loaded under the file lock and writes it
// back when fn reports a change. The document is written even when fn also
// returns an error, so a Take of an expired entry still removes it.
func (s *Store) locked(ctx context.Context, fn func(map[string]storage.Entry) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	fl := flock.New(filepath.Join(s.dir, lockFileName))
	locked, err := fl.TryLockContext(lockCtx, lockRetry)
	if err != nil {
		if errors.Is(lockCtx.Err(), context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return fmt.Errorf("acquiring storage lock: %w", err)
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() { _ = fl.Unlock() }()

	all, err := s.load()
	if err != nil {
		return err
	}

	changed, fnErr := fn(all)
	if changed {
		if err := s.save(all); err != nil {
			return err
		}
	}

	return fnErr
}

func (s *Store) load() (map[string]storage.Entry, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]storage.Entry), nil
		}
		return nil, fmt.Errorf("reading storage file: %w", err)
	}

	all := make(map[string]storage.Entry)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decoding storage file: %w", err)
	}

	return all, nil
}

func (s *Store) save(all map[string]storage.Entry) error {
	now := s.now()
	for key, e := range all {
		if e.Expired(now) {
			delete(all, key)
		}
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding storage file: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.dir, "store-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Chmod(0o600); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(s.Path())
			return os.Rename(tmpPath, s.Path())
		}
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing storage file: %w", err)
	}

	return nil
}
