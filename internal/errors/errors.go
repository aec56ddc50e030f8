package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal
var (
	// Session errors
	ErrUnauthenticated     = errors.New("not authenticated")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrSessionRevoked      = errors.New("session revoked")
	ErrInvalidSession      = errors.New("invalid session")
	ErrRevocationLookup    = errors.New("revocation lookup failed")

	// Token lifecycle errors
	ErrIdentityExchange = errors.New("identity exchange failed")
	ErrTokenRefresh     = errors.New("token refresh failed")

	// Login flow errors
	ErrInvalidState   = errors.New("invalid state")
	ErrInvalidNonce   = errors.New("invalid nonce")
	ErrMissingIDToken = errors.New("missing id token")

	// General errors
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}
