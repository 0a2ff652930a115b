package sessionmock

import (
	"context"
	"sync"

	"github.com/openkcm/api-client/pkg/session"
)

type RepositoryOption func(*Repository)

// Repository is an in-memory session.Repository with fault injection.
type Repository struct {
	mu sync.Mutex

	requests map[string]session.AuthorizationRequest
	latest   string
	session  *session.Session

	storeRequestErr, takeRequestErr, deleteRequestsErr error
	loadSessionErr, storeSessionErr, deleteSessionErr  error
}

func WithRequest(req session.AuthorizationRequest) RepositoryOption {
	return func(r *Repository) {
		r.requests[req.State] = req
		r.latest = req.State
	}
}
func WithSession(sess session.Session) RepositoryOption {
	return func(r *Repository) { r.session = &sess }
}
func WithStoreRequestError(err error) RepositoryOption {
	return func(r *Repository) { r.storeRequestErr = err }
}
func WithTakeRequestError(err error) RepositoryOption {
	return func(r *Repository) { r.takeRequestErr = err }
}
func WithDeleteRequestsError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteRequestsErr = err }
}
func WithLoadSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.loadSessionErr = err }
}
func WithStoreSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.storeSessionErr = err }
}
func WithDeleteSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteSessionErr = err }
}

var _ = session.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		requests: make(map[string]session.AuthorizationRequest),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Repository) StoreRequest(_ context.Context, req session.AuthorizationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeRequestErr != nil {
		return r.storeRequestErr
	}
	delete(r.requests, r.latest)
	r.requests[req.State] = req
	r.latest = req.State
	return nil
}

func (r *Repository) PendingRequest(_ context.Context) (session.AuthorizationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req, ok := r.requests[r.latest]; ok {
		return req, nil
	}
	return session.AuthorizationRequest{}, session.ErrNotFound
}

func (r *Repository) TakeRequest(_ context.Context, state string) (session.AuthorizationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takeRequestErr != nil {
		return session.AuthorizationRequest{}, r.takeRequestErr
	}
	req, ok := r.requests[state]
	if !ok {
		return session.AuthorizationRequest{}, session.ErrNotFound
	}
	delete(r.requests, state)
	if r.latest != state {
		return session.AuthorizationRequest{}, session.ErrNotFound
	}
	r.latest = ""
	return req, nil
}

func (r *Repository) DeleteRequests(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteRequestsErr != nil {
		return r.deleteRequestsErr
	}
	clear(r.requests)
	r.latest = ""
	return nil
}

func (r *Repository) LoadSession(_ context.Context) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loadSessionErr != nil {
		return session.Session{}, r.loadSessionErr
	}
	if r.session == nil {
		return session.Session{}, session.ErrNotFound
	}
	return *r.session, nil
}

func (r *Repository) StoreSession(_ context.Context, sess session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeSessionErr != nil {
		return r.storeSessionErr
	}
	r.session = &sess
	return nil
}

func (r *Repository) DeleteSession(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteSessionErr != nil {
		return r.deleteSessionErr
	}
	r.session = nil
	return nil
}
