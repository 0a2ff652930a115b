// Package oidc resolves the endpoints of the identity provider, either from
// static configuration or from the issuer's discovery document.
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	slogctx "github.com/veqryn/slog-context"
)

const (
	wellKnownPath = "/.well-known/openid-configuration"
	wkocPrefix    = "wkoc_"

	DefaultCacheTTL = time.Hour
)

var (
	ErrNoEndpoint     = errors.New("neither an authorization endpoint nor an issuer URL is configured")
	ErrIssuerMismatch = errors.New("discovered issuer does not match the configured issuer")
)

// Endpoints is the static part of the provider configuration. Non-empty
// fields take precedence over discovered values.
type Endpoints struct {
	IssuerURL             string
	AuthorizationEndpoint string
	TokenEndpoint         string
	JWKSURI               string
}

type Provider struct {
	endpoints  Endpoints
	httpClient *http.Client
	cache      *cache.Cache
	group      singleflight.Group
}

type ProviderOption func(*Provider)

func WithCacheTTL(ttl time.Duration) ProviderOption {
	return func(p *Provider) { p.cache = cache.New(ttl, 2*ttl) }
}

func NewProvider(endpoints Endpoints, httpClient *http.Client, opts ...ProviderOption) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	p := &Provider{
		endpoints:  endpoints,
		httpClient: httpClient,
		cache:      cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Configuration returns the provider metadata. Discovery only happens when no
// authorization endpoint is configured.
func (p *Provider) Configuration(ctx context.Context) (Configuration, error) {
	static := Configuration{
		Issuer:                p.endpoints.IssuerURL,
		AuthorizationEndpoint: p.endpoints.AuthorizationEndpoint,
		TokenEndpoint:         p.endpoints.TokenEndpoint,
		JwksURI:               p.endpoints.JWKSURI,
	}

	if p.endpoints.AuthorizationEndpoint != "" {
		return static, nil
	}
	if p.endpoints.IssuerURL == "" {
		return Configuration{}, ErrNoEndpoint
	}

	discovered, err := p.discover(ctx, p.endpoints.IssuerURL)
	if err != nil {
		return Configuration{}, err
	}

	return discovered.merge(static), nil
}

func (p *Provider) discover(ctx context.Context, issuerURL string) (Configuration, error) {
	cacheKey := wkocPrefix + issuerURL
	if cached, ok := p.cache.Get(cacheKey); ok {
		//nolint:forcetypeassert
		return cached.(Configuration), nil
	}

	v, err, _ := p.group.Do(cacheKey, func() (any, error) {
		cfg, err := p.fetch(ctx, issuerURL)
		if err != nil {
			return nil, err
		}
		p.cache.SetDefault(cacheKey, cfg)

		return cfg, nil
	})
	if err != nil {
		return Configuration{}, err
	}

	//nolint:forcetypeassert
	return v.(Configuration), nil
}

func (p *Provider) fetch(ctx context.Context, issuerURL string) (Configuration, error) {
	u, err := url.Parse(strings.TrimSuffix(issuerURL, "/") + wellKnownPath)
	if err != nil {
		return Configuration{}, fmt.Errorf("parsing issuer URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Configuration{}, fmt.Errorf("issuer URL %q is not absolute", issuerURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Configuration{}, fmt.Errorf("creating a new HTTP request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Configuration{}, fmt.Errorf("executing an http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Configuration{}, fmt.Errorf("discovery endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var cfg Configuration
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return Configuration{}, fmt.Errorf("decoding discovery document: %w", err)
	}

	if strings.TrimSuffix(cfg.Issuer, "/") != strings.TrimSuffix(issuerURL, "/") {
		return Configuration{}, fmt.Errorf("%w: got %q", ErrIssuerMismatch, cfg.Issuer)
	}
	if cfg.AuthorizationEndpoint == "" {
		return Configuration{}, errors.New("discovery document has no authorization endpoint")
	}

	slogctx.Debug(ctx, "Discovered provider configuration", "issuer", cfg.Issuer)

	return cfg, nil
}
