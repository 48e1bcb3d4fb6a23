// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned when a wire endpoint responds with HTTP 401.
// Callers can check for it using errors.Is alongside the ProtocolError it wraps.
var ErrUnauthorized = errors.New("unauthorized")

// Polling outcomes. ErrAuthorizationPending and ErrSlowDown only drive the
// device-code polling loop and are never returned to a caller.
var (
	ErrAuthorizationPending = errors.New("authorization pending")
	ErrSlowDown             = errors.New("slow down")
	ErrExpired              = errors.New("device code expired")
	ErrTimedOut             = errors.New("timeout waiting for authorization")
)

// ErrMissingRefreshToken is returned when the provider granted access without
// a refresh token (the offline_access scope was not consented).
var ErrMissingRefreshToken = errors.New("no refresh_token returned (offline_access scope missing?)")

// ErrMissingCredential means no durable secret is stored. Hosts should prompt
// a new sign-in instead of reporting a technical failure.
var ErrMissingCredential = errors.New("no stored credential: sign in required")

// ErrMissingClaim is returned when a broker response carries no user-hash claim.
var ErrMissingClaim = errors.New("missing user hash claim")

// ErrNoEntitlement means the account owns no license for the game.
var ErrNoEntitlement = errors.New("no license associated with this account")

// ErrNotFound is returned by a SecretVault when no secret is stored.
var ErrNotFound = errors.New("secret not found")

// NetworkError is a transport-level failure: the request never produced an
// HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: http error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError is a non-2xx response from a wire endpoint. Body is kept
// verbatim for diagnostics. Hint carries an optional human explanation.
type ProtocolError struct {
	Op     string
	Status int
	Body   string
	Hint   string
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s failed: %d - %s", e.Op, e.Status, e.Body)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401 response.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

// DecodeError is a response body that could not be decoded.
type DecodeError struct {
	Op   string
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: json error: %v - body: %s", e.Op, e.Err, e.Body)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StorageError means the secret store could not be read or written.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("secret store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsReauthRequired reports whether err can only be resolved by a new device
// sign-in: no stored secret, an expired device code, a grant without refresh
// token, or a refresh token the provider rejected as invalid_grant.
func IsReauthRequired(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrExpired) || errors.Is(err, ErrMissingRefreshToken) {
		return true
	}
	var perr *ProtocolError
	if errors.As(err, &perr) && perr.Op == OpRefresh {
		return strings.Contains(perr.Body, "invalid_grant")
	}
	return false
}
