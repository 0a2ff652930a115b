// Package configstore persists the client configuration (client id and
// redirect URI) in durable storage. The redirect URI is only checked for
// emptiness; its correctness is the caller's responsibility.
package configstore

import (
	"context"
	"errors"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/api-client/pkg/apierr"
	"github.com/openkcm/api-client/pkg/storage"
)

const (
	KeyClientID    = "api.config.client_id"
	KeyRedirectURI = "api.config.redirect_uri"
)

type ClientConfig struct {
	ClientID    string `json:"client_id" yaml:"clientID"`
	RedirectURI string `json:"redirect_uri" yaml:"redirectURI"`
}

// Validate fails with a ConfigError when a field is empty.
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return apierr.Config("client id must not be empty", nil)
	}
	if strings.TrimSpace(c.RedirectURI) == "" {
		return apierr.Config("redirect uri must not be empty", nil)
	}

	return nil
}

type Store struct {
	kv storage.Store
}

func New(kv storage.Store) *Store {
	return &Store{kv: kv}
}

// Configure validates and persists cfg, overwriting any previous value.
func (s *Store) Configure(ctx context.Context, cfg ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := s.kv.Set(ctx, KeyClientID, []byte(cfg.ClientID), 0); err != nil {
		return apierr.Storage("writing client id", err)
	}
	if err := s.kv.Set(ctx, KeyRedirectURI, []byte(cfg.RedirectURI), 0); err != nil {
		return apierr.Storage("writing redirect uri", err)
	}

	slogctx.Debug(ctx, "Client configured", "client_id", cfg.ClientID)

	return nil
}

// Config returns nil when the client was never configured.
func (s *Store) Config(ctx context.Context) (*ClientConfig, error) {
	clientID, err := s.kv.Get(ctx, KeyClientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, apierr.Storage("reading client id", err)
	}

	redirectURI, err := s.kv.Get(ctx, KeyRedirectURI)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, apierr.Storage("reading redirect uri", err)
	}

	return &ClientConfig{
		ClientID:    string(clientID),
		RedirectURI: string(redirectURI),
	}, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyClientID, KeyRedirectURI); err != nil {
		return apierr.Storage("clearing configuration", err)
	}

	return nil
}
