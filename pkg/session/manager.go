// Package session drives the redirect-based login: it issues authorization
// requests, correlates the provider's answer through the state nonce and owns
// the persisted session.
//
// The pending request is consumed before the session is written, and a new
// login ends the current session, so storage never holds both an outstanding
// request and a valid session.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/api-client/internal/pkce"
	"github.com/openkcm/api-client/pkg/apierr"
	"github.com/openkcm/api-client/pkg/configstore"
)

const DefaultRequestTTL = 10 * time.Minute

// ConfigSource provides the client configuration. A nil config means the
// client was never configured.
type ConfigSource interface {
	Config(ctx context.Context) (*configstore.ClientConfig, error)
}

// Auditor receives the outcome of every completed login attempt.
type Auditor interface {
	LoginSucceeded(ctx context.Context, clientID string)
	LoginFailed(ctx context.Context, clientID, reason string)
}

type Manager struct {
	mu sync.Mutex

	config    ConfigSource
	sessions  Repository
	provider  ProviderSource
	exchanger Exchanger
	verifier  *IDTokenVerifier
	auditor   Auditor
	pkce      pkce.Source

	requestTTL     time.Duration
	scope          string
	authParameters map[string]string
	now            func() time.Time
}

type ManagerOption func(*Manager)

// WithExchanger selects the exchange variant. DirectExchanger is the default.
func WithExchanger(e Exchanger) ManagerOption {
	return func(m *Manager) { m.exchanger = e }
}

// WithIDTokenVerifier enables the verification of returned ID tokens.
func WithIDTokenVerifier(v *IDTokenVerifier) ManagerOption {
	return func(m *Manager) { m.verifier = v }
}

func WithAuditor(a Auditor) ManagerOption {
	return func(m *Manager) { m.auditor = a }
}

func WithRequestTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.requestTTL = ttl
		}
	}
}

func WithScope(scope string) ManagerOption {
	return func(m *Manager) { m.scope = scope }
}

// WithAuthParameters adds query parameters to the authorization URL.
func WithAuthParameters(params map[string]string) ManagerOption {
	return func(m *Manager) { m.authParameters = params }
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(config ConfigSource, sessions Repository, provider ProviderSource, opts ...ManagerOption) *Manager {
	m := &Manager{
		config:     config,
		sessions:   sessions,
		provider:   provider,
		exchanger:  DirectExchanger{},
		requestTTL: DefaultRequestTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// ResponseType reports the active exchange variant.
func (m *Manager) ResponseType() string {
	return m.exchanger.ResponseType()
}

// AttemptLogin records a new authorization request, superseding any previous
// one, and returns where to send the user. A current session is ended first.
func (m *Manager) AttemptLogin(ctx context.Context) (RedirectDirective, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.clientConfig(ctx)
	if err != nil {
		return RedirectDirective{}, err
	}

	pc, err := m.provider.Configuration(ctx)
	if err != nil {
		return RedirectDirective{}, providerError(err)
	}

	now := m.now()
	req := AuthorizationRequest{
		State:        m.pkce.State(),
		ClientID:     cfg.ClientID,
		RedirectURI:  cfg.RedirectURI,
		Scope:        m.scope,
		ResponseType: m.exchanger.ResponseType(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.requestTTL),
	}

	var challenge pkce.PKCE
	if req.ResponseType == ResponseTypeCode {
		challenge = m.pkce.PKCE()
		req.PKCEVerifier = challenge.Verifier
	}

	u, err := m.authURL(pc.AuthorizationEndpoint, req, challenge)
	if err != nil {
		return RedirectDirective{}, apierr.Config("building authorization URL", err)
	}

	if err := m.sessions.DeleteSession(ctx); err != nil {
		return RedirectDirective{}, apierr.Storage("deleting session", err)
	}

	if err := m.sessions.StoreRequest(ctx, req); err != nil {
		return RedirectDirective{}, apierr.Storage("storing authorization request", err)
	}

	slogctx.Info(ctx, "Authorization request issued", "response_type", req.ResponseType, "expires_at", req.ExpiresAt)

	return RedirectDirective{
		URL:       u,
		State:     req.State,
		ExpiresAt: req.ExpiresAt,
	}, nil
}

// authURL keeps client_id, redirect_uri, state and response_type first and in
// that order.
func (m *Manager) authURL(endpoint string, req AuthorizationRequest, challenge pkce.PKCE) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing authorisation endpoint url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("authorisation endpoint %q is not absolute", endpoint)
	}

	var b strings.Builder
	add := func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}

	add("client_id", req.ClientID)
	add("redirect_uri", req.RedirectURI)
	add("state", req.State)
	add("response_type", req.ResponseType)
	if req.Scope != "" {
		add("scope", req.Scope)
	}
	if challenge.Challenge != "" {
		add("code_challenge", challenge.Challenge)
		add("code_challenge_method", challenge.Method)
	}

	keys := make([]string, 0, len(m.authParameters))
	for k := range m.authParameters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		add(k, m.authParameters[k])
	}

	if u.RawQuery != "" {
		u.RawQuery += "&" + b.String()
	} else {
		u.RawQuery = b.String()
	}

	return u.String(), nil
}

// ProcessLoginResult completes the login started by AttemptLogin. The
// request matching res.State is consumed whatever the outcome.
func (m *Manager) ProcessLoginResult(ctx context.Context, res AuthorizationResult) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if res.State == "" {
		m.loginFailed(ctx, "", "missing state")
		return Session{}, apierr.StateMismatch("authorization result carries no state")
	}

	req, err := m.sessions.TakeRequest(ctx, res.State)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slogctx.Warn(ctx, "Authorization result does not match an outstanding request")
			m.loginFailed(ctx, "", "state mismatch")
			return Session{}, apierr.StateMismatch("no outstanding authorization request for state")
		}
		return Session{}, apierr.Storage("taking authorization request", err)
	}

	ctx = slogctx.With(ctx, "client_id", req.ClientID)

	sess, err := m.completeLogin(ctx, req, res)
	if err != nil {
		m.loginFailed(ctx, req.ClientID, err.Error())
		return Session{}, err
	}

	if m.auditor != nil {
		m.auditor.LoginSucceeded(ctx, req.ClientID)
	}
	slogctx.Info(ctx, "User logged in", "session_id", sess.ID, "expires_at", sess.ExpiresAt)

	return sess, nil
}

func (m *Manager) completeLogin(ctx context.Context, req AuthorizationRequest, res AuthorizationResult) (Session, error) {
	now := m.now()
	if req.Expired(now) {
		slogctx.Warn(ctx, "Authorization request expired", "expired_at", req.ExpiresAt)
		return Session{}, apierr.StateMismatch("authorization request expired")
	}

	if !res.OK {
		slogctx.Info(ctx, "Authorization denied by provider", "error_code", res.ErrorCode)
		return Session{}, apierr.AuthorizationDenied(res.ErrorCode, res.ErrorDescription)
	}

	tok, err := m.exchanger.Exchange(ctx, req, res)
	if err != nil {
		return Session{}, apierr.Wrap(err, apierr.KindNetwork, "exchanging authorization result")
	}

	sess := Session{
		ID:           uuid.NewString(),
		Credential:   tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		IDToken:      tok.IDToken,
		ExpiresAt:    expiry(tok, now),
		ObtainedAt:   now,
	}

	if m.verifier != nil && tok.IDToken != "" {
		sess.Subject, err = m.verifier.Verify(ctx, tok.IDToken, req.ClientID)
		if err != nil {
			return Session{}, err
		}
	}

	if err := m.sessions.StoreSession(ctx, sess); err != nil {
		return Session{}, apierr.Storage("storing session", err)
	}

	return sess, nil
}

func (m *Manager) loginFailed(ctx context.Context, clientID, reason string) {
	if m.auditor != nil {
		m.auditor.LoginFailed(ctx, clientID, reason)
	}
}

// Logout removes the session and any outstanding request. It is idempotent.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sessions.DeleteSession(ctx); err != nil {
		return apierr.Storage("deleting session", err)
	}
	if err := m.sessions.DeleteRequests(ctx); err != nil {
		return apierr.Storage("deleting authorization requests", err)
	}

	slogctx.Info(ctx, "User logged out")

	return nil
}

// Session returns the current session, or nil when logged out. An expired
// session is deleted on read.
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session(ctx)
}

func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.session(ctx)
	if err != nil {
		return "", err
	}
	if sess != nil {
		return StatusLoggedIn, nil
	}

	req, err := m.sessions.PendingRequest(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return StatusLoggedOut, nil
	case err != nil:
		return "", apierr.Storage("reading authorization request", err)
	case req.Expired(m.now()):
		return StatusLoggedOut, nil
	}

	return StatusPendingAuthorization, nil
}

// Refresh renews the credential with the stored refresh token. It returns nil
// when logged out.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessions.LoadSession(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, apierr.Storage("loading session", err)
	}

	refresher, ok := m.exchanger.(Refresher)
	if !ok {
		return nil, apierr.Config(fmt.Sprintf("response type %q does not support refresh", m.exchanger.ResponseType()), nil)
	}
	if sess.RefreshToken == "" {
		return nil, apierr.Unauthenticated("session has no refresh token", nil)
	}

	cfg, err := m.clientConfig(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := refresher.Refresh(ctx, cfg.ClientID, sess.RefreshToken)
	if err != nil {
		return nil, apierr.Wrap(err, apierr.KindNetwork, "refreshing session")
	}

	now := m.now()
	sess.Credential = tok.AccessToken
	sess.TokenType = tok.TokenType
	sess.ExpiresAt = expiry(tok, now)
	sess.ObtainedAt = now
	if tok.RefreshToken != "" {
		sess.RefreshToken = tok.RefreshToken
	}
	if tok.IDToken != "" {
		sess.IDToken = tok.IDToken
	}

	if err := m.sessions.StoreSession(ctx, sess); err != nil {
		return nil, apierr.Storage("storing session", err)
	}

	slogctx.Info(ctx, "Session refreshed", "session_id", sess.ID, "expires_at", sess.ExpiresAt)

	return &sess, nil
}

func (m *Manager) session(ctx context.Context) (*Session, error) {
	sess, err := m.sessions.LoadSession(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, apierr.Storage("loading session", err)
	}

	if sess.Expired(m.now()) {
		if err := m.sessions.DeleteSession(ctx); err != nil {
			return nil, apierr.Storage("deleting expired session", err)
		}
		slogctx.Info(ctx, "Session expired", "session_id", sess.ID)
		return nil, nil
	}

	return &sess, nil
}

func (m *Manager) clientConfig(ctx context.Context) (*configstore.ClientConfig, error) {
	cfg, err := m.config.Config(ctx)
	if err != nil {
		return nil, apierr.Wrap(err, apierr.KindStorage, "reading client configuration")
	}
	if cfg == nil {
		return nil, apierr.Config("client is not configured", nil)
	}

	return cfg, nil
}

func expiry(tok Token, now time.Time) time.Time {
	if tok.ExpiresIn > 0 {
		return now.Add(tok.ExpiresIn)
	}

	return tok.ExpiresAt
}
