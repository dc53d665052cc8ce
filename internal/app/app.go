// Package app is the composition root: it turns a Config into a running handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hostdex/internal/backend"
	"github.com/kailas-cloud/hostdex/internal/backend/elasticsearch"
	"github.com/kailas-cloud/hostdex/internal/backend/memory"
	"github.com/kailas-cloud/hostdex/internal/backend/opensearch"
	"github.com/kailas-cloud/hostdex/internal/config"
	dbRedis "github.com/kailas-cloud/hostdex/internal/db/redis"
	"github.com/kailas-cloud/hostdex/internal/domain"
	"github.com/kailas-cloud/hostdex/internal/metrics"
	"github.com/kailas-cloud/hostdex/internal/repository/hostindex"
	"github.com/kailas-cloud/hostdex/internal/repository/principal"
	chiTransport "github.com/kailas-cloud/hostdex/internal/transport/chi"
	authuc "github.com/kailas-cloud/hostdex/internal/usecase/auth"
	healthuc "github.com/kailas-cloud/hostdex/internal/usecase/health"
)

// ErrUserStoreReadOnly is returned by SetUser when the configured user store
// cannot be written.
var ErrUserStoreReadOnly = errors.New("user store is read-only")

// principalWriter persists principals. Only the Redis-backed store provides one.
type principalWriter interface {
	Put(ctx context.Context, p domain.Principal) error
}

// App owns the long-lived clients and the HTTP handler.
type App struct {
	Backend  backend.Client
	Hosts    *hostindex.Repository
	Verifier *authuc.Service
	Handler  http.Handler

	users   principalWriter
	closers []func()
}

// New builds the application. It waits for the backend and the user store to
// become ready within their configured readiness timeouts.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.RegisterHTTPMetrics()
	metrics.RegisterBackendMetrics()

	a := &App{}

	be, err := OpenBackend(cfg.Backend, cfg.Ingest)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	a.Backend = be
	a.closers = append(a.closers, be.Close)

	if err := be.WaitForReady(ctx, time.Duration(cfg.Backend.ReadinessTimeout)*time.Second); err != nil {
		a.Close()
		return nil, fmt.Errorf("backend %s not ready: %w", be.Driver(), err)
	}
	logger.Info("Connected to search backend",
		zap.String("driver", be.Driver()),
		zap.Strings("addrs", cfg.Backend.Addrs),
	)

	principals, usersPinger, err := a.openPrincipals(ctx, cfg.Auth.UserStore)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("User store ready", zap.String("driver", cfg.Auth.UserStore.Driver))

	a.Verifier, err = authuc.New(authuc.Config{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   time.Duration(cfg.Auth.LeewaySec) * time.Second,
	}, principals)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("token verifier: %w", err)
	}

	a.Hosts = hostindex.New(be).WithMaxResults(cfg.Search.MaxResults)
	healthSvc := healthuc.New(be, usersPinger)

	server := chiTransport.NewServer(a.Hosts, healthSvc, logger).
		WithMaxBodyBytes(int64(cfg.HTTP.MaxBodyBytes)).
		WithVerifier(a.Verifier)
	a.Handler = chiTransport.NewRouter(server, logger)

	return a, nil
}

// SetUser creates or updates a principal in the user store.
func (a *App) SetUser(ctx context.Context, id string, active bool) error {
	if id == "" {
		return errors.New("user id is required")
	}
	if a.users == nil {
		return fmt.Errorf("set user %s: %w", id, ErrUserStoreReadOnly)
	}
	return a.users.Put(ctx, domain.Principal{ID: id, Active: active})
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// OpenBackend creates the search backend driver selected by cfg.Driver.
func OpenBackend(cfg config.BackendConfig, ingest config.IngestConfig) (backend.Client, error) {
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second

	switch cfg.Driver {
	case config.DriverElasticsearch:
		return elasticsearch.New(elasticsearch.Config{
			Addrs:              cfg.Addrs,
			Username:           cfg.Username,
			Password:           cfg.Password,
			APIKey:             cfg.APIKey,
			MaxRetries:         cfg.MaxRetries,
			RequestTimeout:     timeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			BulkWorkers:        ingest.Workers,
			BulkFlushBytes:     ingest.FlushBytes,
			BulkRefresh:        ingest.Refresh,
		})
	case config.DriverOpenSearch:
		return opensearch.New(opensearch.Config{
			Addrs:              cfg.Addrs,
			Username:           cfg.Username,
			Password:           cfg.Password,
			MaxRetries:         cfg.MaxRetries,
			RequestTimeout:     timeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			BulkWorkers:        ingest.Workers,
			BulkFlushBytes:     ingest.FlushBytes,
			BulkRefresh:        ingest.Refresh,
		})
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Driver)
	}
}

// openPrincipals creates the principal store and the pinger reported by /health.
func (a *App) openPrincipals(
	ctx context.Context, cfg config.UserStoreConfig,
) (authuc.PrincipalStore, healthuc.Pinger, error) {
	switch cfg.Driver {
	case config.UserStoreRedis, config.UserStoreValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
			TLS:      cfg.TLS,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open user store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			return nil, nil, err
		}
		users := principal.NewRedisStore(store, cfg.KeyPrefix)
		a.users = users
		return users, store, nil
	case config.UserStoreStatic:
		s := principal.NewStaticStore(cfg.Users)
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown user store driver %q", cfg.Driver)
	}
}
