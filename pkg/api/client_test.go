package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/api-client/pkg/api"
	"github.com/openkcm/api-client/pkg/apierr"
	"github.com/openkcm/api-client/pkg/session"
	storagememory "github.com/openkcm/api-client/pkg/storage/memory"
)

const authEndpoint = "https://idp.example.com/authorize"

func newClient(t *testing.T, opts ...api.Option) *api.Client {
	t.Helper()

	opts = append([]api.Option{api.WithProvider(api.ProviderConfig{AuthorizationEndpoint: authEndpoint})}, opts...)
	c, err := api.New(storagememory.New(), opts...)
	require.NoError(t, err)

	return c
}

func TestClient_LoginLogoutScenario(t *testing.T) {
	ctx := t.Context()
	c := newClient(t)

	require.NoError(t, c.Configure(ctx, api.ClientConfig{ClientID: "abc", RedirectURI: "https://app/cb"}))

	cfg, err := c.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, &api.ClientConfig{ClientID: "abc", RedirectURI: "https://app/cb"}, cfg)

	d, err := c.AttemptLogin(ctx)
	require.NoError(t, err)
	assert.Contains(t, d.URL, "client_id=abc&redirect_uri=https%3A%2F%2Fapp%2Fcb&state="+d.State)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPendingAuthorization, status)

	_, err = c.ProcessLoginResult(ctx, api.AuthorizationResult{OK: true, Token: "T1", State: d.State})
	require.NoError(t, err)

	sess, err := c.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "T1", sess.Credential)

	require.NoError(t, c.Logout(ctx))

	sess, err = c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestClient_DeniedScenario(t *testing.T) {
	ctx := t.Context()
	c := newClient(t)
	require.NoError(t, c.Configure(ctx, api.ClientConfig{ClientID: "abc", RedirectURI: "https://app/cb"}))

	d, err := c.AttemptLogin(ctx)
	require.NoError(t, err)

	_, err = c.ProcessLoginResult(ctx, api.AuthorizationResult{ErrorCode: "access_denied", State: d.State})
	require.Error(t, err)
	assert.True(t, c.Errors()[apierr.KindAuthorizationDenied].Is(err))

	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "access_denied", e.ErrorCode())

	sess, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestClient_Errors(t *testing.T) {
	ctx := t.Context()
	c := newClient(t)

	_, err := c.AttemptLogin(ctx)
	assert.True(t, c.Errors()[apierr.KindConfig].Is(err))

	err = c.Configure(ctx, api.ClientConfig{ClientID: "abc"})
	assert.True(t, c.Errors()[apierr.KindConfig].Is(err))

	cfg, err := c.Config(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = c.ProcessLoginResult(ctx, api.AuthorizationResult{OK: true, Token: "T1", State: "forged"})
	assert.True(t, c.Errors()[apierr.KindStateMismatch].Is(err))

	for _, kind := range apierr.Kinds() {
		entry, ok := c.Errors()[kind]
		require.True(t, ok, kind)
		assert.True(t, entry.Is(entry.New("m", nil)))
	}
}

func TestClient_ErrorsIsACopy(t *testing.T) {
	c := newClient(t)

	catalog := c.Errors()
	delete(catalog, apierr.KindConfig)

	_, ok := c.Errors()[apierr.KindConfig]
	assert.True(t, ok)
	_, ok = apierr.Catalog[apierr.KindConfig]
	assert.True(t, ok)
}

func TestNew_IDTokenVerificationWithoutIssuer(t *testing.T) {
	_, err := api.New(storagememory.New(),
		api.WithProvider(api.ProviderConfig{AuthorizationEndpoint: "https://idp.example/authorize"}),
		api.WithIDTokenVerification(),
	)
	require.ErrorIs(t, err, apierr.ErrConfig)
}

func TestNew_UnsupportedResponseType(t *testing.T) {
	_, err := api.New(storagememory.New(), api.WithResponseType("id_token"))
	require.ErrorIs(t, err, apierr.ErrConfig)
}

func TestClient_ProcessCallbackURL(t *testing.T) {
	ctx := t.Context()
	c := newClient(t)
	require.NoError(t, c.Configure(ctx, api.ClientConfig{ClientID: "abc", RedirectURI: "https://app/cb"}))
	assert.Equal(t, session.ResponseTypeToken, c.ResponseType())

	d, err := c.AttemptLogin(ctx)
	require.NoError(t, err)

	sess, err := c.ProcessCallbackURL(ctx, "https://app/cb#access_token=T1&token_type=Bearer&expires_in=60&state="+d.State)
	require.NoError(t, err)
	assert.Equal(t, "T1", sess.Credential)
	assert.False(t, sess.ExpiresAt.IsZero())

	_, err = c.ProcessCallbackURL(ctx, "https://app/cb?state="+d.State)
	assert.True(t, c.Errors()[apierr.KindConfig].Is(err))
}

func TestClient_Collaborators(t *testing.T) {
	ctx := t.Context()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"collection": strings.TrimPrefix(r.URL.Path, "/")})
	}))
	defer server.Close()

	c := newClient(t, api.WithAPIBaseURL(server.URL), api.WithHTTPClient(server.Client()))
	require.NoError(t, c.Configure(ctx, api.ClientConfig{ClientID: "abc", RedirectURI: "https://app/cb"}))

	_, err := c.Actions.List(ctx, nil)
	assert.True(t, c.Errors()[apierr.KindUnauthenticated].Is(err))

	d, err := c.AttemptLogin(ctx)
	require.NoError(t, err)
	_, err = c.ProcessLoginResult(ctx, api.AuthorizationResult{OK: true, Token: "T1", TokenType: "Bearer", State: d.State})
	require.NoError(t, err)

	raw, err := c.Actions.List(ctx, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"collection":"actions"}`, string(raw))

	raw, err = c.Datasets.Get(ctx, "d1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"collection":"datasets/d1"}`, string(raw))

	require.NoError(t, c.Logout(ctx))
	_, err = c.Datasets.List(ctx, nil)
	assert.True(t, c.Errors()[apierr.KindUnauthenticated].Is(err))
}
