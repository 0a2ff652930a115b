package session

import "time"

type Status string

const (
	StatusLoggedOut            Status = "LoggedOut"
	StatusPendingAuthorization Status = "PendingAuthorization"
	StatusLoggedIn             Status = "LoggedIn"
)

const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// AuthorizationRequest is persisted under its state nonce until the matching
// callback consumes it.
type AuthorizationRequest struct {
	State        string    `json:"state"`
	ClientID     string    `json:"client_id"`
	RedirectURI  string    `json:"redirect_uri"`
	Scope        string    `json:"scope,omitempty"`
	ResponseType string    `json:"response_type"`
	PKCEVerifier string    `json:"pkce_verifier,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (r AuthorizationRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// AuthorizationResult is what the provider hands back through the redirect.
// It is never persisted.
type AuthorizationResult struct {
	OK               bool
	Code             string
	Token            string
	TokenType        string
	ExpiresIn        time.Duration
	State            string
	ErrorCode        string
	ErrorDescription string
}

type Session struct {
	ID           string    `json:"id" yaml:"id"`
	Credential   string    `json:"credential" yaml:"credential"`
	TokenType    string    `json:"token_type,omitempty" yaml:"tokenType,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty" yaml:"refreshToken,omitempty"`
	IDToken      string    `json:"id_token,omitempty" yaml:"idToken,omitempty"`
	Subject      string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero" yaml:"expiresAt,omitempty"`
	ObtainedAt   time.Time `json:"obtained_at" yaml:"obtainedAt"`
}

// Expired reports whether the session is past its expiry. A session without
// a known expiry never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// RedirectDirective tells the host where to send the user to authorize.
type RedirectDirective struct {
	URL       string
	State     string
	ExpiresAt time.Time
}
