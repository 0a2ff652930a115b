package session

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Repository persists the outstanding authorization request and the current
// session. At most one request is outstanding: storing a new one supersedes
// the previous.
type Repository interface {
	StoreRequest(ctx context.Context, req AuthorizationRequest) error
	// PendingRequest returns the most recent outstanding request.
	PendingRequest(ctx context.Context) (AuthorizationRequest, error)
	// TakeRequest consumes the request stored under state. Requests that were
	// superseded, already taken or expired yield ErrNotFound.
	TakeRequest(ctx context.Context, state string) (AuthorizationRequest, error)
	DeleteRequests(ctx context.Context) error

	LoadSession(ctx context.Context) (Session, error)
	StoreSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context) error
}
