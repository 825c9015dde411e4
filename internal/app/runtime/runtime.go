package runtime

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"rateKit/internal/app"
	"rateKit/internal/app/events"
	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/config"
	"rateKit/internal/infrastructure/metrics"
	"rateKit/internal/infrastructure/persistence/memory"
	sqlitestorage "rateKit/internal/infrastructure/persistence/sqlite"
	"rateKit/internal/interface/api"
	"rateKit/internal/usecase/credentials"
	"rateKit/internal/usecase/oauthstate"
	"rateKit/internal/usecase/platforms"
	"rateKit/internal/usecase/pricing"
	"rateKit/internal/usecase/profile"
	"rateKit/internal/usecase/sns"
)

type Options struct {
	// URLs overrides platform endpoints.
	URLs app.PlatformURLs
}

// storage groups the persistence ports; sqlite and memory both implement all
// of them.
type storage interface {
	domain.AccountRepository
	domain.CredentialRepository
	domain.StatsRepository
	domain.PortfolioRepository
}

// Runtime is the assembled engine: storage, adapters, token lifecycle,
// services and the HTTP surface.
type Runtime struct {
	cfg      *config.Config
	store    storage
	closers  []func() error
	bus      *events.Bus
	metrics  *metrics.Registry
	registry *platforms.Registry
	tokens   *credentials.Manager
	sns      *sns.Service
	server   *api.Server
}

func Build(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		return nil, fmt.Errorf("runtime: nil config")
	}

	run := &Runtime{
		cfg:     cfg,
		bus:     events.NewBus(),
		metrics: metrics.NewRegistry(),
	}

	store, err := run.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	run.store = store

	nonces, err := run.openNonceStore(ctx)
	if err != nil {
		run.Close()
		return nil, err
	}

	secret := []byte(cfg.StateSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			run.Close()
			return nil, fmt.Errorf("runtime: state secret: %w", err)
		}
	}
	states, err := oauthstate.NewCodec(secret, nonces)
	if err != nil {
		run.Close()
		return nil, fmt.Errorf("runtime: state codec: %w", err)
	}

	run.registry = app.NewPlatformRegistry(cfg, run.metrics, opts.URLs)

	run.tokens = credentials.NewManager(store, run.registry, run.metrics, credentials.Config{
		RefreshWindow: cfg.RefreshWindow,
	})
	run.tokens.RegisterHook(run.handleCredentialUpdate)

	run.sns = sns.NewService(sns.Deps{
		Registry:       run.registry,
		Tokens:         run.tokens,
		States:         states,
		Accounts:       store,
		Credentials:    store,
		Stats:          store,
		Portfolio:      store,
		Events:         run.bus,
		Metrics:        run.metrics,
		PortfolioLimit: cfg.PortfolioLimit,
	})

	run.server = api.NewServer(api.Config{
		Addr:        cfg.Addr,
		SNS:         run.sns,
		Pricing:     pricing.NewService(store, store, run.metrics),
		Profile:     profile.NewService(store, store, store),
		Events:      run.bus,
		Topics:      events.Topics,
		Metrics:     run.metrics.Handler(),
		FrontendURL: cfg.FrontendURL,
	})

	return run, nil
}

func (r *Runtime) openStorage(ctx context.Context) (storage, error) {
	if r.cfg.Storage == config.StorageMemory {
		log.Warn().Msg("runtime: using in-memory storage, data is lost on exit")
		return memory.NewStore(), nil
	}

	store, err := sqlitestorage.Open(r.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	r.closers = append(r.closers, store.Close)
	log.Info().Str("path", r.cfg.DBPath).Msg("runtime: sqlite storage ready")
	return store, nil
}

// openNonceStore prefers Redis so OAuth state survives restarts and is shared
// between instances.
func (r *Runtime) openNonceStore(ctx context.Context) (oauthstate.NonceStore, error) {
	if r.cfg.RedisAddr == "" {
		return oauthstate.NewMemoryNonceStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("runtime: redis %s: %w", r.cfg.RedisAddr, err)
	}
	r.closers = append(r.closers, rdb.Close)
	log.Info().Str("addr", r.cfg.RedisAddr).Msg("runtime: redis nonce store ready")
	return oauthstate.NewRedisNonceStore(rdb), nil
}

func (r *Runtime) handleCredentialUpdate(_ context.Context, cred *domain.Credential) {
	if cred == nil {
		return
	}
	r.bus.Publish(events.TopicCredentialRefreshed, events.NewCredentialRefreshedDTO(cred))
}

// Serve runs the refresh sweep and the HTTP server until ctx is done.
func (r *Runtime) Serve(ctx context.Context) error {
	if err := r.tokens.RefreshDue(ctx); err != nil {
		log.Warn().Err(err).Msg("runtime: initial token sweep")
	}
	r.tokens.Start(ctx, r.cfg.RefreshInterval)

	return r.server.Start(ctx)
}

// RefreshTokens runs one refresh sweep.
func (r *Runtime) RefreshTokens(ctx context.Context) error {
	return r.tokens.RefreshDue(ctx)
}

func (r *Runtime) SNS() *sns.Service {
	return r.sns
}

func (r *Runtime) Close() error {
	r.bus.Close()

	var firstErr error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}
