// Package sessionkv stores the session state in a storage.Store using the
// api.session.* key layout.
package sessionkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openkcm/api-client/pkg/session"
	"github.com/openkcm/api-client/pkg/storage"
)

const (
	KeySession = "api.session.current"
	// KeyPending holds the nonce of the most recent authorization request.
	KeyPending = "api.session.pending"
)

// PendingKey is the key of the authorization request issued with state.
func PendingKey(state string) string {
	return KeyPending + "." + state
}

type Repository struct {
	store storage.Store
	now   func() time.Time
}

var _ = session.Repository(&Repository{})

type RepositoryOption func(*Repository)

func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) { r.now = now }
}

func NewRepository(store storage.Store, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Repository) StoreRequest(ctx context.Context, req session.AuthorizationRequest) error {
	var ttl time.Duration
	if !req.ExpiresAt.IsZero() {
		ttl = req.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return errors.New("authorization request is already expired")
		}
	}

	previous, err := r.latestState(ctx)
	if err != nil {
		return err
	}

	bytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding authorization request: %w", err)
	}

	if err := r.store.Set(ctx, PendingKey(req.State), bytes, ttl); err != nil {
		return fmt.Errorf("storing authorization request: %w", err)
	}
	if err := r.store.Set(ctx, KeyPending, []byte(req.State), ttl); err != nil {
		return fmt.Errorf("storing pending state: %w", err)
	}

	if previous != "" && previous != req.State {
		if err := r.store.Delete(ctx, PendingKey(previous)); err != nil {
			return fmt.Errorf("deleting superseded authorization request: %w", err)
		}
	}

	return nil
}

func (r *Repository) PendingRequest(ctx context.Context) (session.AuthorizationRequest, error) {
	state, err := r.latestState(ctx)
	if err != nil {
		return session.AuthorizationRequest{}, err
	}
	if state == "" {
		return session.AuthorizationRequest{}, session.ErrNotFound
	}

	bytes, err := r.store.Get(ctx, PendingKey(state))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.AuthorizationRequest{}, session.ErrNotFound
		}
		return session.AuthorizationRequest{}, fmt.Errorf("getting authorization request: %w", err)
	}

	return decodeRequest(bytes)
}

func (r *Repository) TakeRequest(ctx context.Context, state string) (session.AuthorizationRequest, error) {
	bytes, err := r.store.Take(ctx, PendingKey(state))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.AuthorizationRequest{}, session.ErrNotFound
		}
		return session.AuthorizationRequest{}, fmt.Errorf("taking authorization request: %w", err)
	}

	latest, err := r.latestState(ctx)
	if err != nil {
		return session.AuthorizationRequest{}, err
	}
	if latest != state {
		return session.AuthorizationRequest{}, session.ErrNotFound
	}

	if err := r.store.Delete(ctx, KeyPending); err != nil {
		return session.AuthorizationRequest{}, fmt.Errorf("clearing pending state: %w", err)
	}

	return decodeRequest(bytes)
}

func (r *Repository) DeleteRequests(ctx context.Context) error {
	state, err := r.latestState(ctx)
	if err != nil {
		return err
	}

	keys := []string{KeyPending}
	if state != "" {
		keys = append(keys, PendingKey(state))
	}

	if err := r.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("deleting authorization requests: %w", err)
	}

	return nil
}

func (r *Repository) LoadSession(ctx context.Context) (session.Session, error) {
	bytes, err := r.store.Get(ctx, KeySession)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("getting session: %w", err)
	}

	var s session.Session
	if err := json.Unmarshal(bytes, &s); err != nil {
		return session.Session{}, fmt.Errorf("decoding session: %w", err)
	}

	return s, nil
}

// StoreSession writes s without a storage TTL: expired sessions are removed
// lazily so that they can still be refreshed.
func (r *Repository) StoreSession(ctx context.Context, s session.Session) error {
	bytes, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if err := r.store.Set(ctx, KeySession, bytes, 0); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	return nil
}

func (r *Repository) DeleteSession(ctx context.Context) error {
	if err := r.store.Delete(ctx, KeySession); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}

func (r *Repository) latestState(ctx context.Context) (string, error) {
	bytes, err := r.store.Get(ctx, KeyPending)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("getting pending state: %w", err)
	}

	return string(bytes), nil
}

func decodeRequest(bytes []byte) (session.AuthorizationRequest, error) {
	var req session.AuthorizationRequest
	if err := json.Unmarshal(bytes, &req); err != nil {
		return session.AuthorizationRequest{}, fmt.Errorf("decoding authorization request: %w", err)
	}

	return req, nil
}
