// Package api is the public entry point of the client: configuration,
// redirect-based login, logout, the actions and datasets collaborators and
// the error catalog.
//
// Every failure returned by a Client is an *apierr.Error.
package api

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/openkcm/api-client/internal/oidc"
	"github.com/openkcm/api-client/pkg/apierr"
	"github.com/openkcm/api-client/pkg/configstore"
	"github.com/openkcm/api-client/pkg/resource"
	"github.com/openkcm/api-client/pkg/session"
	sessionkv "github.com/openkcm/api-client/pkg/session/kv"
	"github.com/openkcm/api-client/pkg/storage"
)

type (
	ClientConfig        = configstore.ClientConfig
	Session             = session.Session
	Status              = session.Status
	RedirectDirective   = session.RedirectDirective
	AuthorizationResult = session.AuthorizationResult
)

// ProviderConfig locates the identity provider. Without an authorization
// endpoint the endpoints are discovered from the issuer.
type ProviderConfig struct {
	IssuerURL             string
	AuthorizationEndpoint string
	TokenEndpoint         string
	JWKSURI               string
}

type options struct {
	provider      ProviderConfig
	responseType  string
	verifyIDToken bool
	httpClient    *http.Client
	apiBaseURL    string
	scope         string
	authParams    map[string]string
	requestTTL    time.Duration
	auditor       session.Auditor
	now           func() time.Time
}

type Option func(*options)

func WithProvider(p ProviderConfig) Option {
	return func(o *options) { o.provider = p }
}

// WithResponseType selects the exchange variant: "token" (default) uses the
// token of the redirect, "code" redeems a code at the token endpoint.
func WithResponseType(responseType string) Option {
	return func(o *options) { o.responseType = responseType }
}

// WithIDTokenVerification verifies ID tokens returned by the code flow.
func WithIDTokenVerification() Option {
	return func(o *options) { o.verifyIDToken = true }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithAPIBaseURL sets the URL the actions and datasets collections live under.
func WithAPIBaseURL(u string) Option {
	return func(o *options) { o.apiBaseURL = u }
}

func WithScope(scope string) Option {
	return func(o *options) { o.scope = scope }
}

func WithAuthParameters(params map[string]string) Option {
	return func(o *options) { o.authParams = params }
}

func WithRequestTTL(ttl time.Duration) Option {
	return func(o *options) { o.requestTTL = ttl }
}

// WithAuditor reports every completed login attempt to a.
func WithAuditor(a session.Auditor) Option {
	return func(o *options) { o.auditor = a }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Client composes the configuration store, the session manager and the
// collaborators. It keeps no state of its own.
type Client struct {
	configs  *configstore.Store
	sessions *session.Manager

	Actions  *resource.Client
	Datasets *resource.Client
}

func New(store storage.Store, opts ...Option) (*Client, error) {
	o := options{
		responseType: session.ResponseTypeToken,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	provider := oidc.NewProvider(oidc.Endpoints{
		IssuerURL:             o.provider.IssuerURL,
		AuthorizationEndpoint: o.provider.AuthorizationEndpoint,
		TokenEndpoint:         o.provider.TokenEndpoint,
		JWKSURI:               o.provider.JWKSURI,
	}, o.httpClient)

	managerOpts := []session.ManagerOption{
		session.WithScope(o.scope),
		session.WithAuthParameters(o.authParams),
		session.WithRequestTTL(o.requestTTL),
	}
	if o.now != nil {
		managerOpts = append(managerOpts, session.WithClock(o.now))
	}
	if o.auditor != nil {
		managerOpts = append(managerOpts, session.WithAuditor(o.auditor))
	}

	switch o.responseType {
	case session.ResponseTypeToken:
		managerOpts = append(managerOpts, session.WithExchanger(session.DirectExchanger{}))
	case session.ResponseTypeCode:
		managerOpts = append(managerOpts, session.WithExchanger(session.NewCodeExchanger(provider, o.httpClient)))
	default:
		return nil, apierr.Config(fmt.Sprintf("unsupported response type %q", o.responseType), nil)
	}

	if o.verifyIDToken {
		if o.provider.IssuerURL == "" {
			return nil, apierr.Config("verifying id tokens requires an issuer URL", nil)
		}

		var verifierOpts []session.IDTokenVerifierOption
		if o.now != nil {
			verifierOpts = append(verifierOpts, session.WithVerifierClock(o.now))
		}
		managerOpts = append(managerOpts, session.WithIDTokenVerifier(session.NewIDTokenVerifier(provider, o.httpClient, verifierOpts...)))
	}

	repoOpts := []sessionkv.RepositoryOption{}
	if o.now != nil {
		repoOpts = append(repoOpts, sessionkv.WithClock(o.now))
	}

	configs := configstore.New(store)
	sessions := session.NewManager(configs, sessionkv.NewRepository(store, repoOpts...), provider, managerOpts...)

	return &Client{
		configs:  configs,
		sessions: sessions,
		Actions:  resource.NewClient(resource.Actions, o.apiBaseURL, sessions, o.httpClient),
		Datasets: resource.NewClient(resource.Datasets, o.apiBaseURL, sessions, o.httpClient),
	}, nil
}

func (c *Client) Configure(ctx context.Context, cfg ClientConfig) error {
	return wrap(c.configs.Configure(ctx, cfg), "configuring client")
}

// Config returns nil when the client was never configured.
func (c *Client) Config(ctx context.Context) (*ClientConfig, error) {
	cfg, err := c.configs.Config(ctx)
	return cfg, wrap(err, "reading configuration")
}

func (c *Client) AttemptLogin(ctx context.Context) (RedirectDirective, error) {
	d, err := c.sessions.AttemptLogin(ctx)
	return d, wrap(err, "attempting login")
}

func (c *Client) ProcessLoginResult(ctx context.Context, res AuthorizationResult) (Session, error) {
	s, err := c.sessions.ProcessLoginResult(ctx, res)
	return s, wrap(err, "processing login result")
}

// ProcessCallbackURL parses the redirect URL and processes the result it
// carries.
func (c *Client) ProcessCallbackURL(ctx context.Context, rawURL string) (Session, error) {
	res, err := session.ParseCallbackURL(rawURL)
	if err != nil {
		return Session{}, err
	}

	return c.ProcessLoginResult(ctx, res)
}

func (c *Client) Logout(ctx context.Context) error {
	return wrap(c.sessions.Logout(ctx), "logging out")
}

// Session returns nil when logged out or when the session expired.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	s, err := c.sessions.Session(ctx)
	return s, wrap(err, "reading session")
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	s, err := c.sessions.Status(ctx)
	return s, wrap(err, "reading status")
}

func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	s, err := c.sessions.Refresh(ctx)
	return s, wrap(err, "refreshing session")
}

// ResponseType reports the active exchange variant.
func (c *Client) ResponseType() string {
	return c.sessions.ResponseType()
}

// Errors returns a copy of the error catalog for discrimination by kind.
func (c *Client) Errors() map[apierr.Kind]apierr.Entry {
	return maps.Clone(apierr.Catalog)
}

func wrap(err error, message string) error {
	return apierr.Wrap(err, apierr.KindStorage, message)
}
