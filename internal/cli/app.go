package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	backend "github.com/redis/go-redis/v9"

	"github.com/lyoneil/Botpress"
	"github.com/lyoneil/Botpress/internal/config"
	"github.com/lyoneil/Botpress/pkg/adapters/bolt"
	"github.com/lyoneil/Botpress/pkg/adapters/file"
	httpadapter "github.com/lyoneil/Botpress/pkg/adapters/http"
	"github.com/lyoneil/Botpress/pkg/adapters/memory"
	redisstore "github.com/lyoneil/Botpress/pkg/adapters/redis"
	"github.com/lyoneil/Botpress/pkg/adapters/sqlstore"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/middleware"
	"github.com/lyoneil/Botpress/pkg/observability"
	persistmw "github.com/lyoneil/Botpress/pkg/persistence/middleware"
	"github.com/lyoneil/Botpress/pkg/ports"
	"github.com/lyoneil/Botpress/pkg/realtime"
	"github.com/lyoneil/Botpress/pkg/registry"
)

// App is a runtime assembled from configuration, with the resources it holds.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Runtime  *botpress.Runtime
	Loader   *file.Loader
	Store    ports.StateStore
	Hub      *realtime.Hub
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	redis   *backend.Client
	closers []func() error
}

// Build opens the storage and wires the runtime described by cfg.
// The caller must Close the App.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	store, locker, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if app.Store, err = app.protect(store); err != nil {
		return nil, err
	}

	var loaderOpts []file.Option
	if cfg.Flows.SingleBot {
		loaderOpts = append(loaderOpts, file.WithSingleBot())
	}
	app.Loader = file.NewLoader(cfg.Flows.Dir, loaderOpts...)

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = observability.NewMetrics(app.Registry)

	servers := registry.NewServerDirectory()
	for _, s := range cfg.ActionServers {
		servers.Add(domain.ActionServer{ID: s.ID, BaseURL: s.BaseURL})
	}

	opts := []botpress.Option{
		botpress.WithStore(app.Store),
		botpress.WithLockTTL(cfg.Storage.LockTTL),
		botpress.WithFlowLoader(app.Loader),
		botpress.WithActionServers(servers),
		botpress.WithSandbox(cfg.Sandbox),
		botpress.WithEntryFlow(cfg.Dialog.EntryFlow),
		botpress.WithErrorFlow(cfg.Dialog.ErrorFlow),
		botpress.WithMaxSteps(cfg.Dialog.MaxSteps),
		botpress.WithLastMessagesLimit(cfg.Dialog.LastMessages),
		botpress.WithMiddlewareTimeout(cfg.Middleware.Timeout),
		botpress.WithLifecycleHooks(domain.Merge(observability.LogHooks(logger), app.Metrics.Hooks())),
		botpress.WithLogger(logger),
	}
	if locker != nil {
		opts = append(opts, botpress.WithLocker(locker))
	}
	if cfg.Realtime.Enabled {
		if app.Hub, err = app.newHub(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, botpress.WithRealtime(app.Hub))
	}

	if app.Runtime, err = botpress.New(opts...); err != nil {
		return nil, err
	}
	if err := app.Runtime.Pipeline().Register(middleware.Sanitizer(cfg.Middleware.MaxInputSize)); err != nil {
		return nil, err
	}
	return app, nil
}

// Handler returns the HTTP API of the runtime.
func (a *App) Handler() http.Handler {
	opts := []httpadapter.Option{
		httpadapter.WithMetrics(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})),
		httpadapter.WithCORSOrigins(a.Config.Server.CORSOrigins...),
		httpadapter.WithLogger(a.Logger),
	}
	if a.Hub != nil {
		opts = append(opts, httpadapter.WithRealtime(a.Hub))
	}
	return httpadapter.NewHandler(a.Runtime, a.Runtime.Sessions(), opts...)
}

// Close releases the storage and the connections, in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context) (ports.StateStore, ports.DistributedLocker, error) {
	cfg := a.Config.Storage
	switch cfg.Driver {
	case config.DriverRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = redisstore.DefaultPrefix
		}
		store := redisstore.NewFromClient(client, redisstore.WithTTL(cfg.TTL), redisstore.WithPrefix(prefix))
		return store, redisstore.NewLocker(client, prefix), nil

	case config.DriverBolt:
		store, err := bolt.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil, nil

	case config.DriverPostgres, config.DriverSQLite:
		store, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil, nil

	case config.DriverMemory, "":
		return memory.NewStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// protect wraps the store with PII masking and encryption, when configured.
// Masking runs first so that encrypted records never hold the raw values.
func (a *App) protect(store ports.StateStore) (ports.StateStore, error) {
	cfg := a.Config.Storage
	var mws []persistmw.Middleware
	if len(cfg.PIIPatterns) > 0 {
		pii, err := persistmw.NewPIIMiddleware(cfg.PIIPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if cfg.EncryptionKey != "" {
		keys, err := cfg.Keys()
		if err != nil {
			return nil, err
		}
		enc, err := persistmw.NewEncryptionMiddleware(keys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return persistmw.Wrap(store, mws...), nil
}

func (a *App) redisClient(ctx context.Context) (*backend.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	cfg := a.Config.Redis
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *App) newHub(ctx context.Context) (*realtime.Hub, error) {
	cfg := a.Config
	opts := []realtime.Option{
		realtime.WithLogger(a.Logger),
		realtime.WithBufferSize(cfg.Realtime.BufferSize),
	}
	if cfg.Server.AppSecret != "" {
		tokens, err := realtime.NewHMACTokens(cfg.Server.AppSecret)
		if err != nil {
			return nil, err
		}
		opts = append(opts, realtime.WithTokenVerifier(tokens))
	}
	if cfg.Realtime.Redis {
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, realtime.WithBackplane(redisstore.NewBackplane(client, "", a.Logger)))
	}
	if origins := cfg.Server.CORSOrigins; len(origins) > 0 {
		opts = append(opts, realtime.WithCheckOrigin(func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, o := range origins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		}))
	}
	hub := realtime.NewHub(opts...)
	a.closers = append(a.closers, hub.Close)
	return hub, nil
}
