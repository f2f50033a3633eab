package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// SecretHasher hashes refresh secrets for storage and verifies presented
// secrets in constant time with respect to secret content.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encodedHash string) (bool, error)
}

// Service implements the high-level session operations.
//
// It issues sessions (access token + refresh secret), performs single-use
// refresh rotation with reuse detection, and supports per-session and
// per-user revocation plus the expiry sweep. The Service owns the mutation
// contract for Session records; the Store is a passive keyed collection.
type Service struct {
	cfg    Config
	store  Store
	hasher SecretHasher
	tokens TokenIssuer
	audit  Auditor
	log    *zap.Logger
}

// CreateParams is the input to CreateSession. DeviceInfo is opaque
// client-supplied metadata and is stored as-is.
type CreateParams struct {
	UserID     string
	DeviceID   string
	DeviceInfo map[string]any
	IPAddress  string
	UserAgent  string
}

// Issued is the result of creating or rotating a session. RefreshSecret is
// the raw secret, surfaced exactly once; only its hash is persisted.
type Issued struct {
	Session          Session
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshSecret    string
	RefreshExpiresAt time.Time
}

// NewService constructs a Service. A nil auditor defaults to NopAuditor and
// a nil logger to zap.NewNop.
func NewService(cfg Config, store Store, hasher SecretHasher, tokens TokenIssuer, audit Auditor, log *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || hasher == nil || tokens == nil {
		return nil, fmt.Errorf("%w: store, hasher and tokens are required", ErrConfig)
	}
	if audit == nil {
		audit = NopAuditor{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, store: store, hasher: hasher, tokens: tokens, audit: audit, log: log}, nil
}

// CreateSession starts a new session for a user/device pair.
//
// It generates a fresh id and refresh secret, persists the session with a
// sliding expiry of now + refresh TTL, and issues an access token bound to
// (user, session). Store failure is fatal to the call; there are no retries.
func (s *Service) CreateSession(ctx context.Context, now time.Time, p CreateParams) (Issued, error) {
	if p.UserID == "" || p.DeviceID == "" {
		return Issued{}, ErrInvalidInput
	}

	secret, err := newRefreshSecret(s.cfg.RefreshSecretBytes)
	if err != nil {
		return Issued{}, err
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return Issued{}, err
	}

	sess := Session{
		ID:               ulid.Make().String(),
		UserID:           p.UserID,
		RefreshTokenHash: hash,
		DeviceID:         p.DeviceID,
		DeviceInfo:       p.DeviceInfo,
		IPAddress:        p.IPAddress,
		UserAgent:        p.UserAgent,
		CreatedAt:        now,
		LastUsedAt:       now,
		ExpiresAt:        now.Add(s.cfg.RefreshTokenTTL),
	}

	if err := s.store.Insert(ctx, sess); err != nil {
		opsTotal.WithLabelValues("create", outcomeError).Inc()
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(p.UserID, sess.ID, now)
	if err != nil {
		opsTotal.WithLabelValues("create", outcomeError).Inc()
		return Issued{}, err
	}

	opsTotal.WithLabelValues("create", outcomeOK).Inc()

	ev := newAuditEvent(AuditIssued, now)
	ev.UserID = p.UserID
	ev.SessionID = sess.ID
	ev.IPAddress = p.IPAddress
	ev.UserAgent = p.UserAgent
	s.audit.Emit(ctx, ev)

	return Issued{
		Session:          sess,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshSecret:    secret,
		RefreshExpiresAt: sess.ExpiresAt,
	}, nil
}

// DeviceContext carries the client context presented with a refresh call.
// DeviceID is optional: when empty the device-binding check is skipped,
// when set it must match the session's stored device id. IPAddress and
// UserAgent, when set, are recorded on the rotated session.
type DeviceContext struct {
	DeviceID  string
	IPAddress string
	UserAgent string
}

// VerifyAndRotate validates a presented refresh secret and, on success,
// rotates it in place: new secret hash, new sliding expiry, refreshed usage
// metadata.
//
// Every rejection except reuse collapses to ErrInvalidOrExpired so callers
// cannot probe which check failed. A presented secret that no longer matches
// the stored hash is treated as theft: all of the user's sessions are
// revoked before ErrReuseDetected is returned.
func (s *Service) VerifyAndRotate(ctx context.Context, now time.Time, sessionID, secret string, dev DeviceContext) (Issued, error) {
	if sessionID == "" || secret == "" {
		opsTotal.WithLabelValues("rotate", outcomeRejected).Inc()
		return Issued{}, ErrInvalidOrExpired
	}

	sess, err := s.store.GetByID(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		opsTotal.WithLabelValues("rotate", outcomeRejected).Inc()
		return Issued{}, ErrInvalidOrExpired
	}
	if err != nil {
		opsTotal.WithLabelValues("rotate", outcomeError).Inc()
		return Issued{}, err
	}

	if !sess.UsableAt(now, s.cfg.GracePeriod) {
		opsTotal.WithLabelValues("rotate", outcomeRejected).Inc()
		return Issued{}, ErrInvalidOrExpired
	}
	if dev.DeviceID != "" && dev.DeviceID != sess.DeviceID {
		opsTotal.WithLabelValues("rotate", outcomeRejected).Inc()
		return Issued{}, ErrInvalidOrExpired
	}

	ok, err := s.hasher.Verify(secret, sess.RefreshTokenHash)
	if err != nil {
		opsTotal.WithLabelValues("rotate", outcomeError).Inc()
		return Issued{}, fmt.Errorf("verify refresh secret: %w", err)
	}
	if !ok {
		// Reuse detection: the secret was rotated away and presented again.
		// Compromised-credential response is to kill every session the user
		// has, then surface the distinguished failure.
		if _, revokeErr := s.store.RevokeAllByUser(ctx, now, sess.UserID, "reuse_detected", s.cfg.BatchSize); revokeErr != nil {
			s.log.Error("reuse fan-out revoke failed",
				zap.Error(revokeErr),
				zap.String("user_id", sess.UserID),
				zap.String("session_id", sess.ID))
		}

		reuseDetectedTotal.Inc()
		opsTotal.WithLabelValues("rotate", outcomeRejected).Inc()

		ev := newAuditEvent(AuditReuseDetected, now)
		ev.UserID = sess.UserID
		ev.SessionID = sess.ID
		ev.IPAddress = dev.IPAddress
		ev.UserAgent = dev.UserAgent
		s.audit.Emit(ctx, ev)

		return Issued{}, ErrReuseDetected
	}

	newSecret, err := newRefreshSecret(s.cfg.RefreshSecretBytes)
	if err != nil {
		opsTotal.WithLabelValues("rotate", outcomeError).Inc()
		return Issued{}, err
	}
	newHash, err := s.hasher.Hash(newSecret)
	if err != nil {
		opsTotal.WithLabelValues("rotate", outcomeError).Inc()
		return Issued{}, err
	}

	updated, err := s.store.Rotate(ctx, RotateUpdate{
		SessionID: sess.ID,
		PrevHash:  sess.RefreshTokenHash,
		NewHash:   newHash,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		Now:       now,
		IPAddress: dev.IPAddress,
		UserAgent: dev.UserAgent,
	})
	if errors.Is(err, ErrRotationConflict) || errors.Is(err, ErrNotFound) {
		// A concurrent rotation won between verify and write. Benign race:
		// the loser gets the opaque rejection, never the reuse incident.
		opsTotal.WithLabelValues("rotate", outcomeRejected).Inc()
		return Issued{}, ErrInvalidOrExpired
	}
	if err != nil {
		opsTotal.WithLabelValues("rotate", outcomeError).Inc()
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(updated.UserID, updated.ID, now)
	if err != nil {
		opsTotal.WithLabelValues("rotate", outcomeError).Inc()
		return Issued{}, err
	}

	opsTotal.WithLabelValues("rotate", outcomeOK).Inc()

	ev := newAuditEvent(AuditRotated, now)
	ev.UserID = updated.UserID
	ev.SessionID = updated.ID
	ev.IPAddress = dev.IPAddress
	ev.UserAgent = dev.UserAgent
	s.audit.Emit(ctx, ev)

	return Issued{
		Session:          updated,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshSecret:    newSecret,
		RefreshExpiresAt: updated.ExpiresAt,
	}, nil
}

// ValidateAccessToken verifies an access token signature and expiry. It is a
// pure check over key material; revocation is not consulted here because
// access tokens are short-lived by design.
func (s *Service) ValidateAccessToken(token string, now time.Time) (AccessClaims, error) {
	return s.tokens.Verify(token, now)
}

// AccessTokenExpiry reports an access token's expiry without verifying it.
func (s *Service) AccessTokenExpiry(token string) (time.Time, error) {
	return s.tokens.Expiry(token)
}

// RevokeSession revokes a single session (logout from one device). Reports
// false when the session is absent or already revoked.
func (s *Service) RevokeSession(ctx context.Context, now time.Time, sessionID string) (bool, error) {
	changed, err := s.store.Revoke(ctx, now, sessionID, "logout")
	if err != nil {
		opsTotal.WithLabelValues("revoke", outcomeError).Inc()
		return false, err
	}
	if !changed {
		opsTotal.WithLabelValues("revoke", outcomeRejected).Inc()
		return false, nil
	}

	opsTotal.WithLabelValues("revoke", outcomeOK).Inc()

	ev := newAuditEvent(AuditRevoked, now)
	ev.SessionID = sessionID
	s.audit.Emit(ctx, ev)
	return true, nil
}

// RevokeAllUserSessions revokes every active session of a user (logout
// everywhere). Idempotent: with no active sessions it is a silent success.
func (s *Service) RevokeAllUserSessions(ctx context.Context, now time.Time, userID string) (int, error) {
	n, err := s.store.RevokeAllByUser(ctx, now, userID, "logout_all", s.cfg.BatchSize)
	if err != nil {
		opsTotal.WithLabelValues("revoke_all", outcomeError).Inc()
		return n, err
	}

	opsTotal.WithLabelValues("revoke_all", outcomeOK).Inc()

	if n > 0 {
		ev := newAuditEvent(AuditRevokedAll, now)
		ev.UserID = userID
		ev.Meta = map[string]any{"revoked": n}
		s.audit.Emit(ctx, ev)
	}
	return n, nil
}

// CleanupExpiredSessions marks expired-but-unrevoked sessions revoked in
// bounded batches. Best-effort housekeeping: failures are logged by the
// caller and never block request-path operations.
func (s *Service) CleanupExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	n, err := s.store.MarkExpired(ctx, now, s.cfg.BatchSize)
	if err != nil {
		opsTotal.WithLabelValues("cleanup", outcomeError).Inc()
		return n, err
	}

	opsTotal.WithLabelValues("cleanup", outcomeOK).Inc()
	cleanupRevokedTotal.Add(float64(n))

	if n > 0 {
		ev := newAuditEvent(AuditCleanup, now)
		ev.Meta = map[string]any{"revoked": n}
		s.audit.Emit(ctx, ev)
	}
	return n, nil
}

// ListUserSessions returns the user's active sessions, for device-management
// surfaces.
func (s *Service) ListUserSessions(ctx context.Context, userID string) ([]Session, error) {
	return s.store.ListActiveByUser(ctx, userID)
}
