package session_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/api-client/internal/oidc"
)

const testKeyID = "k1"

type staticProvider struct {
	cfg oidc.Configuration
	err error
}

func (p staticProvider) Configuration(context.Context) (oidc.Configuration, error) {
	return p.cfg, p.err
}

// identityProvider is a minimal OpenID provider: discovery, JWKS and a token
// endpoint. Codes "denied" and "broken" make the token endpoint fail.
type identityProvider struct {
	*httptest.Server

	key      *rsa.PrivateKey
	mu       sync.Mutex
	form     url.Values
	audience string
	subject  string
}

func startIdentityProvider(t *testing.T, clientID string) *identityProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &identityProvider{
		key:      key,
		audience: clientID,
		subject:  "user-1",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(oidc.Configuration{
			Issuer:                           idp.URL,
			AuthorizationEndpoint:            idp.URL + "/authorize",
			TokenEndpoint:                    idp.URL + "/token",
			JwksURI:                          idp.URL + "/jwks.json",
			IDTokenSigningAlgValuesSupported: []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     testKeyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}})
	})
	mux.HandleFunc("/token", idp.token)

	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Close)

	return idp
}

func (idp *identityProvider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	idp.mu.Lock()
	idp.form = r.PostForm
	idp.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		switch code := r.PostForm.Get("code"); code {
		case "denied":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid_grant", "error_description": "code expired"}`))
		case "broken":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal error"))
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "AT-" + code,
				"token_type":    "Bearer",
				"refresh_token": "RT1",
				"expires_in":    3600,
				"id_token":      idp.idToken(),
			})
		}
	case "refresh_token":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "AT-refreshed",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "unsupported_grant_type"}`))
	}
}

func (idp *identityProvider) idToken() string {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: idp.key, KeyID: testKeyID}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		panic(err)
	}

	idp.mu.Lock()
	audience, subject := idp.audience, idp.subject
	idp.mu.Unlock()

	now := time.Now()
	raw, err := jwt.Signed(signer).Claims(jwt.Claims{
		Issuer:   idp.URL,
		Subject:  subject,
		Audience: jwt.Audience{audience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
	}).Serialize()
	if err != nil {
		panic(err)
	}

	return raw
}

func (idp *identityProvider) setAudience(audience string) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	idp.audience = audience
}

func (idp *identityProvider) lastForm() url.Values {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.form
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Now()}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
