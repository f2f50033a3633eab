// Package app wires the keeld runtime: config, logging, storage, the session
// engine and its HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"keel/internal/httpapi"
	"keel/internal/security/secrethash"
	"keel/internal/session"
)

// App owns the runtime resources of the server process.
type App struct {
	cfg Config
	log *zap.Logger

	pool *pgxpool.Pool
	svc  *session.Service
	api  *httpapi.Handler
}

// New constructs a fully wired App. With no database configured the session
// store is in-memory, which is only suitable for development.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*App, error) {
	var (
		pool  *pgxpool.Pool
		store session.Store
	)

	if cfg.DatabaseURL == "" {
		log.Warn("db.disabled.inmemory_store")
		store = session.NewMemoryStore()
	} else {
		if cfg.MigrateOnStart {
			if err := RunMigrations(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}

		p, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pool = p
		store = session.NewPostgresStore(pool)
		log.Info("db.enabled.postgres_store")
	}

	tokens, err := session.NewJWTIssuer(cfg.SessionConfig())
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	svc, err := session.NewService(
		cfg.SessionConfig(),
		store,
		secrethash.DefaultConfig(),
		tokens,
		session.NewLogAuditor(log),
		log.Named("session"),
	)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:  cfg,
		log:  log,
		pool: pool,
		svc:  svc,
		api:  httpapi.NewHandler(svc, log.Named("http")),
	}, nil
}

// Run starts the janitor and the HTTP server, blocking until context
// cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go janitor(janitorCtx, a.svc, a.cfg.JanitorInterval, a.log.Named("janitor"))

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           newRouter(a.log, a.cfg, a.pool, a.api),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
	}

	a.log.Info("server.start",
		zap.String("addr", a.cfg.HTTPAddr),
		zap.Bool("db_enabled", a.pool != nil))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", zap.String("reason", "context_done"))
	case err := <-errCh:
		a.log.Error("server.fail", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", zap.Error(err))
		return err
	}

	if a.pool != nil {
		a.pool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}
