package errors

import (
	"errors"
	"fmt"
)

// Common error types for the handoff service
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrUserExists         = errors.New("user already registered")
	ErrWeakPassword       = errors.New("weak password")

	// Magic link / code exchange errors
	ErrLinkExpired  = errors.New("link expired")
	ErrFlowNotFound = errors.New("magic link flow not found")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrEmptyToken   = errors.New("empty token")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Provider errors
	ErrRateLimited = errors.New("rate limited")
	ErrUnavailable = errors.New("identity provider unavailable")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrInternal       = errors.New("internal error")
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
