package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/openkcm/api-client/internal/oidc"
	"github.com/openkcm/api-client/pkg/apierr"
)

// Token is the outcome of an exchange. ExpiresIn, when set, takes precedence
// over ExpiresAt.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IDToken      string
	ExpiresIn    time.Duration
	ExpiresAt    time.Time
}

// Exchanger turns a successful AuthorizationResult into a credential.
type Exchanger interface {
	// ResponseType is sent as response_type in the authorization URL.
	ResponseType() string
	Exchange(ctx context.Context, req AuthorizationRequest, res AuthorizationResult) (Token, error)
}

// Refresher is implemented by exchangers able to renew a credential.
type Refresher interface {
	Refresh(ctx context.Context, clientID, refreshToken string) (Token, error)
}

// ProviderSource resolves the provider endpoints.
type ProviderSource interface {
	Configuration(ctx context.Context) (oidc.Configuration, error)
}

// DirectExchanger uses the token delivered in the redirect as the credential.
type DirectExchanger struct{}

var _ Exchanger = DirectExchanger{}

func (DirectExchanger) ResponseType() string { return ResponseTypeToken }

func (DirectExchanger) Exchange(_ context.Context, _ AuthorizationRequest, res AuthorizationResult) (Token, error) {
	if res.Token == "" {
		return Token{}, apierr.AuthorizationDenied("invalid_response", "the redirect carries no access token")
	}

	return Token{
		AccessToken: res.Token,
		TokenType:   res.TokenType,
		ExpiresIn:   res.ExpiresIn,
	}, nil
}

// CodeExchanger redeems an authorization code at the token endpoint, proving
// possession of the PKCE verifier.
type CodeExchanger struct {
	provider   ProviderSource
	httpClient *http.Client
}

var (
	_ Exchanger = (*CodeExchanger)(nil)
	_ Refresher = (*CodeExchanger)(nil)
)

func NewCodeExchanger(provider ProviderSource, httpClient *http.Client) *CodeExchanger {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &CodeExchanger{
		provider:   provider,
		httpClient: httpClient,
	}
}

func (*CodeExchanger) ResponseType() string { return ResponseTypeCode }

func (e *CodeExchanger) Exchange(ctx context.Context, req AuthorizationRequest, res AuthorizationResult) (Token, error) {
	if res.Code == "" {
		return Token{}, apierr.AuthorizationDenied("invalid_response", "the redirect carries no authorization code")
	}

	cfg, err := e.config(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return Token{}, err
	}

	var opts []oauth2.AuthCodeOption
	if req.PKCEVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(req.PKCEVerifier))
	}

	tok, err := cfg.Exchange(e.clientContext(ctx), res.Code, opts...)
	if err != nil {
		return Token{}, tokenError("exchanging authorization code", err)
	}

	return fromOAuth2(tok), nil
}

func (e *CodeExchanger) Refresh(ctx context.Context, clientID, refreshToken string) (Token, error) {
	cfg, err := e.config(ctx, clientID, "")
	if err != nil {
		return Token{}, err
	}

	tok, err := cfg.TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return Token{}, tokenError("refreshing token", err)
	}

	return fromOAuth2(tok), nil
}

func (e *CodeExchanger) config(ctx context.Context, clientID, redirectURI string) (*oauth2.Config, error) {
	pc, err := e.provider.Configuration(ctx)
	if err != nil {
		return nil, providerError(err)
	}
	if pc.TokenEndpoint == "" {
		return nil, apierr.Config("provider has no token endpoint", nil)
	}

	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   pc.AuthorizationEndpoint,
			TokenURL:  pc.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

func (e *CodeExchanger) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

func fromOAuth2(tok *oauth2.Token) Token {
	t := Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		t.IDToken = idToken
	}

	return t
}

// tokenError maps token endpoint failures: a rejection carrying an OAuth error
// code is a denial, everything else is a transport problem.
func tokenError(message string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
		return apierr.AuthorizationDenied(retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
	}

	return apierr.Network(message, err)
}

func providerError(err error) error {
	if errors.Is(err, oidc.ErrNoEndpoint) {
		return apierr.Config("no provider endpoint is configured", err)
	}

	return apierr.Network("resolving provider configuration", err)
}
