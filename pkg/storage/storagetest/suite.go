// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/api-client/pkg/storage"
)

// Run exercises store against the storage.Store contract. newStore must
// return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(t.Context(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		require.NoError(t, s.Set(ctx, "api.config.client_id", []byte("abc"), 0))

		got, err := s.Get(ctx, "api.config.client_id")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)
	})

	t.Run("set overwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		require.NoError(t, s.Set(ctx, "k", []byte("one"), 0))
		require.NoError(t, s.Set(ctx, "k", []byte("two"), 0))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})

	t.Run("take consumes the value", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))

		got, err := s.Take(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		_, err = s.Take(ctx, "k")
		require.ErrorIs(t, err, storage.ErrNotFound)

		_, err = s.Get(ctx, "k")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("take missing key", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Take(t.Context(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("concurrent take succeeds once", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for range workers {
			wg.Go(func() {
				if _, err := s.Take(ctx, "k"); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			})
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
		require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

		require.NoError(t, s.Delete(ctx, "a", "b", "missing"))
		require.NoError(t, s.Delete(ctx, "a"))
		require.NoError(t, s.Delete(ctx))

		_, err := s.Get(ctx, "a")
		require.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.Get(ctx, "b")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("values are copied", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()

		value := []byte("abc")
		require.NoError(t, s.Set(ctx, "k", value, 0))
		value[0] = 'x'

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)
	})
}
