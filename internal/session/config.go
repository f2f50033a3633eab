package session

import (
	"fmt"
	"time"
)

// Config defines all runtime configuration for the session engine.
//
// It controls access-token TTL, refresh lifetime, the post-expiry grace
// window, clock skew tolerance, refresh entropy size, and the JWT signing key.
//
// This struct is intentionally explicit so that production deployments can
// tune security parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// AccessTokenTTL defines the lifetime of signed access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the sliding session lifetime; every successful
	// rotation recomputes expiry to now + RefreshTokenTTL.
	RefreshTokenTTL time.Duration

	// GracePeriod tolerates rotation shortly after nominal expiry.
	GracePeriod time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// RefreshSecretBytes defines the number of random bytes used to
	// generate opaque refresh secrets.
	RefreshSecretBytes int

	// AccessTokenSecret is the HMAC key for signing access tokens.
	AccessTokenSecret []byte

	// BatchSize bounds batched revoke/cleanup writes per store round trip.
	BatchSize int
}

// DefaultConfig returns a secure default configuration suitable for
// development. Production deployments override values via environment.
func DefaultConfig() Config {
	return Config{
		Issuer:             "keel",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    45 * 24 * time.Hour,
		GracePeriod:        5 * time.Minute,
		ClockSkew:          30 * time.Second,
		RefreshSecretBytes: 32,
		BatchSize:          500,
	}
}

// Validate checks invariants that would otherwise surface as subtle runtime
// misbehavior. Returns ErrConfig describing the first violation.
func (c Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("%w: issuer must not be empty", ErrConfig)
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("%w: access token ttl must be positive", ErrConfig)
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return fmt.Errorf("%w: refresh ttl must exceed access ttl", ErrConfig)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("%w: grace period must not be negative", ErrConfig)
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("%w: clock skew must not be negative", ErrConfig)
	}
	if c.RefreshSecretBytes < 32 || c.RefreshSecretBytes > 64 {
		return fmt.Errorf("%w: refresh secret bytes out of range [32..64]", ErrConfig)
	}
	if len(c.AccessTokenSecret) < 32 {
		return fmt.Errorf("%w: access token secret must be at least 32 bytes", ErrConfig)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1", ErrConfig)
	}
	return nil
}
