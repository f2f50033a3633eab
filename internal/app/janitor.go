package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"keel/internal/session"
)

// janitor periodically sweeps expired sessions. Sweep failures are logged and
// retried on the next tick; the loop exits on context cancellation.
func janitor(ctx context.Context, svc *session.Service, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.CleanupExpiredSessions(ctx, time.Now().UTC())
			if err != nil {
				log.Warn("janitor.sweep.fail", zap.Error(err), zap.Int("revoked", n))
				continue
			}
			if n > 0 {
				log.Info("janitor.sweep", zap.Int("revoked", n))
			}
		}
	}
}
