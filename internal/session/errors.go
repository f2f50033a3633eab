package session

import "errors"

var (
	// ErrInvalidOrExpired is the opaque rejection for refresh attempts.
	// It deliberately collapses "no such session", "revoked", "expired past
	// grace", "device mismatch" and "lost a benign rotation race" so callers
	// cannot enumerate which condition failed.
	ErrInvalidOrExpired = errors.New("session invalid or expired")

	// ErrReuseDetected is returned when a rotated-away refresh secret is
	// presented again. All sessions for the user have been revoked by the
	// time the caller sees this; the caller must force re-authentication.
	ErrReuseDetected = errors.New("refresh secret reuse detected")

	// ErrInvalidToken is returned when an access token fails verification.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrInvalidInput is returned for malformed creation input (empty user
	// or device id).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")

	// ErrNotFound is a store-level sentinel; the service never lets it
	// escape a refresh path (anti-enumeration).
	ErrNotFound = errors.New("session not found")

	// ErrRotationConflict is a store-level sentinel: the conditional rotation
	// update found the stored hash already changed (or the row revoked).
	ErrRotationConflict = errors.New("session rotation conflict")
)
