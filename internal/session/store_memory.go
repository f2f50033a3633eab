package session

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured and
// as the unit-test seam. All operations are guarded by a single mutex; the
// conditional Rotate therefore has the same atomicity as the SQL version.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*Session
}

// NewMemoryStore constructs an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Session)}
}

func cloneSession(s *Session) Session {
	out := *s
	if s.DeviceInfo != nil {
		out.DeviceInfo = maps.Clone(s.DeviceInfo)
	}
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		out.RevokedAt = &t
	}
	return out
}

// Insert persists a new session row.
func (m *MemoryStore) Insert(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := cloneSession(&s)
	m.rows[s.ID] = &row
	return nil
}

// GetByID loads a session row by id.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return cloneSession(row), nil
}

// ListActiveByUser returns the unrevoked sessions owned by userID.
func (m *MemoryStore) ListActiveByUser(ctx context.Context, userID string) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Session
	for _, row := range m.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			out = append(out, cloneSession(row))
		}
	}
	return out, nil
}

// Rotate conditionally replaces the refresh hash of an existing row.
func (m *MemoryStore) Rotate(ctx context.Context, u RotateUpdate) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[u.SessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if row.RevokedAt != nil || row.RefreshTokenHash != u.PrevHash {
		return Session{}, ErrRotationConflict
	}

	row.RefreshTokenHash = u.NewHash
	row.ExpiresAt = u.ExpiresAt
	row.LastUsedAt = u.Now
	if u.IPAddress != "" {
		row.IPAddress = u.IPAddress
	}
	if u.UserAgent != "" {
		row.UserAgent = u.UserAgent
	}

	return cloneSession(row), nil
}

// Revoke marks one session revoked (idempotent).
func (m *MemoryStore) Revoke(ctx context.Context, now time.Time, id, reason string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok || row.RevokedAt != nil {
		return false, nil
	}
	t := now
	row.RevokedAt = &t
	return true, nil
}

// RevokeAllByUser revokes every active session of a user.
func (m *MemoryStore) RevokeAllByUser(ctx context.Context, now time.Time, userID, reason string, batchSize int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			t := now
			row.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

// MarkExpired revokes active sessions whose expiry has passed.
func (m *MemoryStore) MarkExpired(ctx context.Context, now time.Time, batchSize int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, row := range m.rows {
		if row.RevokedAt == nil && !row.ExpiresAt.After(now) {
			t := now
			row.RevokedAt = &t
			n++
		}
	}
	return n, nil
}
