package session

import "time"

// Session is the single persistent entity owned by this engine.
//
// RefreshTokenHash holds the Argon2id hash of the currently valid refresh
// secret; the raw secret is returned to the client exactly once and never
// persisted. RevokedAt is terminal: once set, no operation unsets it.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string

	// Provenance metadata, captured at creation. IPAddress, UserAgent and
	// LastUsedAt are refreshed on each successful rotation.
	DeviceID   string
	DeviceInfo map[string]any
	IPAddress  string
	UserAgent  string

	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// Active reports whether the session has not been revoked.
func (s Session) Active() bool { return s.RevokedAt == nil }

// UsableAt reports whether the session may still rotate at now: it must be
// active and either unexpired or within the grace window that absorbs clock
// skew and in-flight requests racing expiry.
func (s Session) UsableAt(now time.Time, grace time.Duration) bool {
	if !s.Active() {
		return false
	}
	if now.Before(s.ExpiresAt) {
		return true
	}
	return now.Sub(s.ExpiresAt) <= grace
}
