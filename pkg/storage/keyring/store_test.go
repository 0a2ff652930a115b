package storagekeyring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/openkcm/api-client/pkg/storage"
	storagekeyring "github.com/openkcm/api-client/pkg/storage/keyring"
	"github.com/openkcm/api-client/pkg/storage/storagetest"
)

func TestStore(t *testing.T) {
	keyring.MockInit()

	storagetest.Run(t, func(t *testing.T) storage.Store {
		t.Helper()
		return storagekeyring.New("api-client-test/" + t.Name())
	})
}

func TestStoreExpiry(t *testing.T) {
	keyring.MockInit()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := storagekeyring.New("api-client-test/expiry")
	s.SetClock(func() time.Time { return now })
	ctx := t.Context()

	require.NoError(t, s.Set(ctx, "pending", []byte("req"), time.Minute))

	now = now.Add(time.Hour)

	_, err := s.Get(ctx, "pending")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = keyring.Get("api-client-test/expiry", "pending")
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestAvailable(t *testing.T) {
	keyring.MockInit()
	assert.True(t, storagekeyring.Available(""))

	keyring.MockInitWithError(assert.AnError)
	assert.False(t, storagekeyring.Available("api-client-test"))
}

func TestNewDefaultService(t *testing.T) {
	keyring.MockInit()

	s := storagekeyring.New("")
	require.NoError(t, s.Set(t.Context(), "k", []byte("v"), 0))

	got, err := keyring.Get(storagekeyring.DefaultService, "k")
	require.NoError(t, err)
	assert.Contains(t, got, "value")
}
