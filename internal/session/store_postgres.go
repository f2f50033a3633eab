package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the sessions table.
//
// Rotation safety relies on the conditional UPDATE guard (id + current hash +
// unrevoked), not on row locks: the losing side of a race simply matches zero
// rows. Timestamps are normalized to UTC at this boundary and nowhere else.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `
	id, user_id, refresh_token_hash,
	device_id, device_info, ip_address, user_agent,
	created_at, last_used_at, expires_at, revoked_at`

func scanSession(row pgx.Row) (Session, error) {
	var (
		s    Session
		info []byte
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.RefreshTokenHash,
		&s.DeviceID,
		&info,
		&s.IPAddress,
		&s.UserAgent,
		&s.CreatedAt,
		&s.LastUsedAt,
		&s.ExpiresAt,
		&s.RevokedAt,
	)
	if err != nil {
		return Session{}, err
	}

	if len(info) > 0 {
		if err := json.Unmarshal(info, &s.DeviceInfo); err != nil {
			return Session{}, fmt.Errorf("device_info: %w", err)
		}
	}

	s.CreatedAt = s.CreatedAt.UTC()
	s.LastUsedAt = s.LastUsedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	if s.RevokedAt != nil {
		t := s.RevokedAt.UTC()
		s.RevokedAt = &t
	}

	return s, nil
}

// Insert persists a new session row.
func (s *PostgresStore) Insert(ctx context.Context, sess Session) error {
	var info []byte
	if sess.DeviceInfo != nil {
		b, err := json.Marshal(sess.DeviceInfo)
		if err != nil {
			return fmt.Errorf("device_info: %w", err)
		}
		info = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash,
			device_id, device_info, ip_address, user_agent,
			created_at, last_used_at, expires_at, revoked_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $8, $9, NULL
		)
	`,
		sess.ID, sess.UserID, sess.RefreshTokenHash,
		sess.DeviceID, info, sess.IPAddress, sess.UserAgent,
		sess.CreatedAt.UTC(), sess.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID loads a session row by id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = $1
	`, id)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ListActiveByUser returns the unrevoked sessions owned by userID, most
// recently used first.
func (s *PostgresStore) ListActiveByUser(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY last_used_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Rotate conditionally replaces the refresh hash of an existing row.
func (s *PostgresStore) Rotate(ctx context.Context, u RotateUpdate) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions
		SET
			refresh_token_hash = $3,
			expires_at = $4,
			last_used_at = $5,
			ip_address = COALESCE(NULLIF($6, ''), ip_address),
			user_agent = COALESCE(NULLIF($7, ''), user_agent)
		WHERE id = $1
		  AND refresh_token_hash = $2
		  AND revoked_at IS NULL
		RETURNING `+sessionColumns+`
	`,
		u.SessionID, u.PrevHash, u.NewHash,
		u.ExpiresAt.UTC(), u.Now.UTC(),
		u.IPAddress, u.UserAgent,
	)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row vanished or another rotation won; indistinguishable
		// here and the service treats both as a conflict.
		return Session{}, ErrRotationConflict
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Revoke marks one session revoked (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, id, reason string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET revoked_at = $2, revocation_reason = $3
		WHERE id = $1 AND revoked_at IS NULL
	`, id, now.UTC(), reason)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeAllByUser revokes every active session of a user in bounded batches.
func (s *PostgresStore) RevokeAllByUser(ctx context.Context, now time.Time, userID, reason string, batchSize int) (int, error) {
	total := 0
	for {
		tag, err := s.pool.Exec(ctx, `
			UPDATE sessions
			SET revoked_at = $2, revocation_reason = $3
			WHERE id IN (
				SELECT id FROM sessions
				WHERE user_id = $1 AND revoked_at IS NULL
				LIMIT $4
			)
		`, userID, now.UTC(), reason, batchSize)
		if err != nil {
			return total, fmt.Errorf("revoke all for user: %w", err)
		}

		n := int(tag.RowsAffected())
		total += n
		if n < batchSize {
			return total, nil
		}
	}
}

// MarkExpired revokes active sessions whose expiry has passed, in bounded
// batches.
func (s *PostgresStore) MarkExpired(ctx context.Context, now time.Time, batchSize int) (int, error) {
	total := 0
	for {
		tag, err := s.pool.Exec(ctx, `
			UPDATE sessions
			SET revoked_at = $1, revocation_reason = 'expired'
			WHERE id IN (
				SELECT id FROM sessions
				WHERE expires_at <= $1 AND revoked_at IS NULL
				LIMIT $2
			)
		`, now.UTC(), batchSize)
		if err != nil {
			return total, fmt.Errorf("mark expired: %w", err)
		}

		n := int(tag.RowsAffected())
		total += n
		if n < batchSize {
			return total, nil
		}
	}
}
