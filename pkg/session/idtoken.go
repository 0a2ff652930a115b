package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/patrickmn/go-cache"

	"github.com/openkcm/api-client/pkg/apierr"
)

const (
	defaultKeySetTTL = 10 * time.Minute
	keySetPrefix     = "jwks_"
)

// IDTokenVerifier checks the signature and the standard claims of the ID token
// returned next to the access token.
type IDTokenVerifier struct {
	provider   ProviderSource
	httpClient *http.Client
	keySets    *cache.Cache
	now        func() time.Time
}

type IDTokenVerifierOption func(*IDTokenVerifier)

func WithVerifierClock(now func() time.Time) IDTokenVerifierOption {
	return func(v *IDTokenVerifier) { v.now = now }
}

func NewIDTokenVerifier(provider ProviderSource, httpClient *http.Client, opts ...IDTokenVerifierOption) *IDTokenVerifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	v := &IDTokenVerifier{
		provider:   provider,
		httpClient: httpClient,
		keySets:    cache.New(defaultKeySetTTL, 2*defaultKeySetTTL),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify returns the subject of a valid token issued for clientID.
func (v *IDTokenVerifier) Verify(ctx context.Context, rawIDToken, clientID string) (string, error) {
	pc, err := v.provider.Configuration(ctx)
	if err != nil {
		return "", providerError(err)
	}
	if pc.JwksURI == "" {
		return "", apierr.Config("provider has no jwks uri", nil)
	}
	if pc.Issuer == "" {
		return "", apierr.Config("provider has no issuer to verify id tokens against", nil)
	}

	algs := make([]jose.SignatureAlgorithm, 0, len(pc.IDTokenSigningAlgValuesSupported))
	for _, alg := range pc.IDTokenSigningAlgValuesSupported {
		algs = append(algs, jose.SignatureAlgorithm(alg))
	}
	if len(algs) == 0 {
		algs = append(algs, jose.RS256)
	}

	token, err := jwt.ParseSigned(rawIDToken, algs)
	if err != nil {
		return "", invalidIDToken(fmt.Errorf("parsing id token: %w", err))
	}

	keySet, err := v.keySet(ctx, pc.JwksURI)
	if err != nil {
		return "", apierr.Network("getting jwks for the provider", err)
	}

	var claims jwt.Claims
	if err := token.Claims(keySet, &claims); err != nil {
		return "", invalidIDToken(fmt.Errorf("getting JWT claims: %w", err))
	}

	expected := jwt.Expected{
		Issuer:      pc.Issuer,
		AnyAudience: jwt.Audience{clientID},
		Time:        v.now(),
	}
	if err := claims.ValidateWithLeeway(expected, jwt.DefaultLeeway); err != nil {
		return "", invalidIDToken(err)
	}

	return claims.Subject, nil
}

func (v *IDTokenVerifier) keySet(ctx context.Context, uri string) (*jose.JSONWebKeySet, error) {
	if cached, ok := v.keySets.Get(keySetPrefix + uri); ok {
		//nolint:forcetypeassert
		return cached.(*jose.JSONWebKeySet), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("creating a new HTTP request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing an http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var keySet jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("decoding keyset response: %w", err)
	}

	v.keySets.SetDefault(keySetPrefix+uri, &keySet)

	return &keySet, nil
}

func invalidIDToken(err error) error {
	return apierr.AuthorizationDenied("invalid_id_token", err.Error())
}
