package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keel",
		Subsystem: "session",
		Name:      "operations_total",
		Help:      "Session engine operations by type and outcome.",
	}, []string{"op", "outcome"})

	reuseDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keel",
		Subsystem: "session",
		Name:      "reuse_detected_total",
		Help:      "Refresh-secret reuse incidents (each triggers a user-wide revoke).",
	})

	cleanupRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keel",
		Subsystem: "session",
		Name:      "cleanup_revoked_total",
		Help:      "Sessions revoked by the expiry sweep.",
	})
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)
