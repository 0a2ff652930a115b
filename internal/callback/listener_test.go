package callback_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/api-client/internal/callback"
)

func startListener(t *testing.T) *callback.Listener {
	t.Helper()

	l, err := callback.Listen(t.Context(), "127.0.0.1:0", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return l
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestListener_CapturesCallback(t *testing.T) {
	l := startListener(t)
	assert.True(t, strings.HasSuffix(l.URL(), callback.DefaultPath))

	status, body := get(t, l.URL()+"?code=c1&state=s1")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Authorization received")

	// later callbacks are ignored
	_, _ = get(t, l.URL()+"?code=c2&state=s2")

	got, err := l.Wait(t.Context(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, l.URL()+"?code=c1&state=s1", got)
}

func TestListener_BouncesFragment(t *testing.T) {
	l := startListener(t)

	status, body := get(t, l.URL())
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "window.location.hash")

	status, _ = get(t, strings.TrimSuffix(l.URL(), callback.DefaultPath)+"/other")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListener_Wait(t *testing.T) {
	t.Run("Timeout", func(t *testing.T) {
		l := startListener(t)

		_, err := l.Wait(t.Context(), 10*time.Millisecond)
		require.ErrorIs(t, err, callback.ErrTimeout)
	})

	t.Run("Cancelled", func(t *testing.T) {
		l := startListener(t)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := l.Wait(ctx, time.Minute)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestListen_AddressInUse(t *testing.T) {
	l := startListener(t)

	addr := strings.TrimPrefix(strings.TrimSuffix(l.URL(), callback.DefaultPath), "http://")
	_, err := callback.Listen(t.Context(), addr, "")
	require.Error(t, err)
}
