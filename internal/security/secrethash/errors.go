package secrethash

import "errors"

// Public, stable errors for callers.
var (
	ErrEmptySecret = errors.New("empty secret")
	ErrInvalidHash = errors.New("invalid secret hash")
)
