package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrInternal     = errors.New("internal error")
)

// Error pairs a sentinel kind with the message that is safe to show a client.
// Err holds the underlying cause for logs only.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func fail(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func internal(op string, err error) error {
	return &Error{Kind: ErrInternal, Message: "internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

// PublicMessage is the client-facing text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// Shared failures; the text never says which check failed.
var (
	errInvalidCredentials = fail(ErrUnauthorized, "invalid email or password")
	errInvalidRefresh     = fail(ErrUnauthorized, "invalid or expired refresh token")
	errInvalidReset       = fail(ErrBadRequest, "invalid or expired reset token")
	errInvalidVerify      = fail(ErrBadRequest, "invalid or expired verification token")
)
