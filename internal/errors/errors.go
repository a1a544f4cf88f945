// Package errors holds the application-wide error sentinels.
// Import it as apperrors to avoid shadowing the standard library package.
package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrAuthentication = errors.New("authentication failed")
	ErrInactiveUser   = errors.New("user is not active")
)

// HTTPStatus maps an error chain to the status code the API should answer with.
// Anything unknown is a 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrAuthentication), errors.Is(err, ErrInactiveUser):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicError carries a client-facing message on top of one of the sentinels
// above. errors.Is matches the sentinel; Error returns only the message.
type PublicError struct {
	Kind error
	Msg  string
}

func (e *PublicError) Error() string { return e.Msg }
func (e *PublicError) Unwrap() error { return e.Kind }

// Public builds a PublicError.
func Public(kind error, msg string) error {
	return &PublicError{Kind: kind, Msg: msg}
}

// Message returns the client-facing text of err: the first PublicError
// message when there is one, otherwise fallback.
func Message(err error, fallback string) string {
	var pe *PublicError
	if errors.As(err, &pe) {
		return pe.Msg
	}
	return fallback
}
