package session

import (
	"fmt"

	"github.com/jrsteele09/rally-session/identity"
)

const (
	defaultLoginFailure   = "Login failed"
	defaultRefreshFailure = "Session expired"
)

// AuthenticationError is returned when the server rejects a login.
// Reason carries the server supplied detail when there was one.
type AuthenticationError struct {
	Class  identity.Class
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s login rejected: %s", e.Class, e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// RefreshFailure is returned when the refresh endpoint rejects a session.
// By the time it is returned the session of that class has been logged out.
type RefreshFailure struct {
	Class  identity.Class
	Reason string
	Err    error
}

func (e *RefreshFailure) Error() string {
	return fmt.Sprintf("%s session refresh failed: %s", e.Class, e.Reason)
}

func (e *RefreshFailure) Unwrap() error {
	return e.Err
}
