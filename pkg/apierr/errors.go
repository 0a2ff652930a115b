// Package apierr is the error catalog shared by every component of the client.
// Callers discriminate failures by Kind, never by message text.
package apierr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig              Kind = "ConfigError"
	KindStateMismatch       Kind = "StateMismatchError"
	KindAuthorizationDenied Kind = "AuthorizationDeniedError"
	KindNetwork             Kind = "NetworkError"
	KindStorage             Kind = "StorageError"
	KindUnauthenticated     Kind = "UnauthenticatedError"
)

// Sentinels for errors.Is. They match any Error of the same kind.
var (
	ErrConfig              = &Error{kind: KindConfig}
	ErrStateMismatch       = &Error{kind: KindStateMismatch}
	ErrAuthorizationDenied = &Error{kind: KindAuthorizationDenied}
	ErrNetwork             = &Error{kind: KindNetwork}
	ErrStorage             = &Error{kind: KindStorage}
	ErrUnauthenticated     = &Error{kind: KindUnauthenticated}
)

// Error is immutable once constructed.
type Error struct {
	kind        Kind
	message     string
	code        string
	description string
	cause       error
}

func (e *Error) Kind() Kind      { return e.kind }
func (e *Error) Message() string { return e.message }
func (e *Error) Cause() error    { return e.cause }

// ErrorCode is the provider error code of an AuthorizationDeniedError.
func (e *Error) ErrorCode() string { return e.code }

// ErrorDescription is the optional provider description of an AuthorizationDeniedError.
func (e *Error) ErrorDescription() string { return e.description }

func (e *Error) Error() string {
	msg := string(e.kind)
	if e.message != "" {
		msg += ": " + e.message
	}
	if e.code != "" {
		msg += " (" + e.code
		if e.description != "" {
			msg += ": " + e.description
		}
		msg += ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}

	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.kind == e.kind && t.message == "" && t.code == "" && t.cause == nil
}

func Config(message string, cause error) *Error {
	return &Error{kind: KindConfig, message: message, cause: cause}
}

func StateMismatch(message string) *Error {
	return &Error{kind: KindStateMismatch, message: message}
}

func AuthorizationDenied(code, description string) *Error {
	return &Error{
		kind:        KindAuthorizationDenied,
		message:     "authorization denied by provider",
		code:        code,
		description: description,
	}
}

func Network(message string, cause error) *Error {
	return &Error{kind: KindNetwork, message: message, cause: cause}
}

func Storage(message string, cause error) *Error {
	return &Error{kind: KindStorage, message: message, cause: cause}
}

func Unauthenticated(message string, cause error) *Error {
	return &Error{kind: KindUnauthenticated, message: message, cause: cause}
}

// As returns the catalog error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}

	return nil, false
}

// KindOf returns the kind of the catalog error in err's chain.
func KindOf(err error) (Kind, bool) {
	e, ok := As(err)
	if !ok {
		return "", false
	}

	return e.kind, true
}

// Wrap converts err into a catalog error of the fallback kind. Errors already in
// the catalog are returned unchanged.
func Wrap(err error, fallback Kind, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}

	entry, ok := Catalog[fallback]
	if !ok {
		panic(fmt.Sprintf("apierr: unknown kind %q", fallback))
	}

	return entry.New(message, err)
}
