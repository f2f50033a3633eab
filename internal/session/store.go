package session

import (
	"context"
	"time"
)

// RotateUpdate carries the conditional in-place rotation of a session.
//
// The update must only apply while the stored refresh hash still equals
// PrevHash and the session is unrevoked; otherwise the store returns
// ErrRotationConflict and leaves the row untouched. This is what keeps
// rotation single-use under concurrent refresh attempts.
type RotateUpdate struct {
	SessionID string
	PrevHash  string
	NewHash   string
	ExpiresAt time.Time
	Now       time.Time

	// Refreshed provenance; empty values leave the stored ones in place.
	IPAddress string
	UserAgent string
}

// Store abstracts persistence for session state.
//
// Implementations must apply Rotate atomically (compare-and-swap on the
// refresh hash) and keep revocation idempotent: revoking an already revoked
// row is a no-op, never an error. Batched operations apply at most batchSize
// rows per write; batches are independent and unordered, which is safe
// because all batched writes are monotone transitions to revoked_at.
type Store interface {
	// Insert persists a new session row.
	Insert(ctx context.Context, s Session) error

	// GetByID loads a session row by id. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (Session, error)

	// ListActiveByUser returns the unrevoked sessions owned by userID.
	ListActiveByUser(ctx context.Context, userID string) ([]Session, error)

	// Rotate conditionally replaces the refresh hash, expiry and usage
	// metadata of an existing row. Returns the updated row, or
	// ErrRotationConflict when the guard no longer holds.
	Rotate(ctx context.Context, u RotateUpdate) (Session, error)

	// Revoke marks one session revoked. Reports whether a row changed.
	Revoke(ctx context.Context, now time.Time, id, reason string) (bool, error)

	// RevokeAllByUser revokes every active session of a user in bounded
	// batches. Returns the number of sessions revoked.
	RevokeAllByUser(ctx context.Context, now time.Time, userID, reason string, batchSize int) (int, error)

	// MarkExpired revokes active sessions whose expiry has passed, in
	// bounded batches. Returns the number of sessions revoked.
	MarkExpired(ctx context.Context, now time.Time, batchSize int) (int, error)
}
