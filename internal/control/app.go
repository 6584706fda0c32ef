// Package control wires configuration into a running application.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/livesync/internal/core/config"
	"github.com/vietddude/livesync/internal/core/domain"
	"github.com/vietddude/livesync/internal/core/pagination"
	"github.com/vietddude/livesync/internal/health"
	"github.com/vietddude/livesync/internal/infra/fetch"
	redisclient "github.com/vietddude/livesync/internal/infra/redis"
	"github.com/vietddude/livesync/internal/infra/storage"
	"github.com/vietddude/livesync/internal/infra/storage/memory"
	"github.com/vietddude/livesync/internal/infra/storage/postgres"
	"github.com/vietddude/livesync/internal/integrations/weather"
)

// Writer mutates records in the configured backend.
type Writer interface {
	Upsert(ctx context.Context, query string, rec domain.Record) (domain.Record, error)
	Delete(ctx context.Context, query, id string) error
}

// App owns the backend, the outbound fetcher and the open lists.
type App struct {
	cfg *config.AppConfig
	log *slog.Logger

	store       *memory.MemoryStorage
	db          *postgres.DB
	redisClient *redisclient.Client
	provider    storage.Pager
	writer      Writer

	fetcher *fetch.Fetcher
	weather *weather.Client

	healthMon    *health.Monitor
	healthServer *health.Server

	mu    sync.Mutex
	lists map[string]*pagination.Controller
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		cfg:       cfg,
		log:       log,
		healthMon: health.NewMonitor(),
		lists:     make(map[string]*pagination.Controller),
	}

	// 1. Initialize Storage
	switch cfg.Backend {
	case config.BackendPostgres:
		if err := a.initPostgres(ctx); err != nil {
			a.closeBackends()
			return nil, err
		}
	default:
		if err := a.initMemory(ctx); err != nil {
			return nil, err
		}
	}

	// 2. Initialize Fetcher
	a.fetcher = fetch.NewFetcher(fetch.NewHTTPClient(cfg.Fetch.Timeout), fetch.WithLogger(log))
	a.weather = weather.NewClient(a.fetcher, cfg.Weather.Client(cfg.Fetch.Policy()), log)

	// 3. Initialize Health
	a.healthMon.AddCheck("lists", health.GaugeCheck(func() any { return a.OpenLists() }))
	a.healthMon.AddCheck("weather_upstream", health.FetchCheck(a.fetcher.Monitor()))
	if a.db != nil {
		a.healthMon.AddCheck("database", health.PoolCheck(a.db.Health, a.db.PoolUsage))
	}
	if a.redisClient != nil {
		a.healthMon.AddCheck("redis", health.PingCheck(a.redisClient.Ping))
	}
	a.healthServer = health.NewServer(a.healthMon, cfg.Server.Port)

	return a, nil
}

func (a *App) initMemory(ctx context.Context) error {
	a.store = memory.NewMemoryStorage()
	for _, seed := range a.cfg.List.Seed {
		fields, err := json.Marshal(seed.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode seed %s: %w", seed.ID, err)
		}
		if len(seed.Fields) == 0 {
			fields = nil
		}
		rec := domain.Record{ID: seed.ID, SortKey: seed.SortKey, Fields: fields}
		if _, err := a.store.Upsert(ctx, a.cfg.List.Query, rec); err != nil {
			return fmt.Errorf("failed to seed %s: %w", seed.ID, err)
		}
	}

	a.provider = a.store
	a.writer = a.store
	a.log.Info("Using Memory storage", "seeded", len(a.cfg.List.Seed))
	return nil
}

func (a *App) initPostgres(ctx context.Context) error {
	db, err := postgres.NewDB(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	a.db = db

	if err := postgres.Migrate(ctx, db.DB.DB); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}

	repoOpts := []postgres.RepoOption{postgres.WithRepoLogger(a.log)}
	if a.cfg.Redis.URL != "" {
		a.redisClient, err = redisclient.NewClient(a.cfg.Redis, a.log)
		if err != nil {
			return fmt.Errorf("failed to init redis: %w", err)
		}
		repoOpts = append(repoOpts, postgres.WithPublisher(a.redisClient))
	}

	repo := postgres.NewRecordRepo(db, repoOpts...)
	a.writer = repo
	if a.redisClient != nil {
		a.provider = storage.NewLive(repo, a.redisClient)
		a.log.Info("Using PostgreSQL storage with Redis live feed")
	} else {
		a.provider = repo
		a.log.Warn("Using PostgreSQL storage without live feed; set redis.url to enable it")
	}
	return nil
}

// Provider returns the query backend.
func (a *App) Provider() storage.Pager {
	return a.provider
}

// Writer returns the record writer for the backend.
func (a *App) Writer() Writer {
	return a.writer
}

// Weather returns the weather client.
func (a *App) Weather() *weather.Client {
	return a.weather
}

// Fetcher returns the shared outbound fetcher.
func (a *App) Fetcher() *fetch.Fetcher {
	return a.fetcher
}

// Health returns the health monitor.
func (a *App) Health() *health.Monitor {
	return a.healthMon
}

// listOptions fills unset options from config.
func (a *App) listOptions(opts pagination.Options) pagination.Options {
	if opts.PageSize == 0 {
		opts.PageSize = a.cfg.List.PageSize
	}
	if opts.Logger == nil {
		opts.Logger = a.log
	}
	return opts
}

// OpenList opens a tracked list controller. The App closes it on Stop.
func (a *App) OpenList(
	ctx context.Context,
	query string,
	args domain.Args,
	opts pagination.Options,
) (*pagination.Controller, error) {
	c, err := pagination.Open(ctx, a.provider, query, args, a.listOptions(opts))
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.lists[c.ID()] = c
	a.mu.Unlock()
	return c, nil
}

// BindList opens a binding whose args can change. The caller closes it.
func (a *App) BindList(
	ctx context.Context,
	query string,
	args domain.Args,
	opts pagination.Options,
) (*pagination.Binding, error) {
	return pagination.Bind(ctx, a.provider, query, args, a.listOptions(opts))
}

// OpenLists returns the number of open tracked lists per query, pruning
// closed ones.
func (a *App) OpenLists() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[string]int)
	for id, c := range a.lists {
		if c.Closed() {
			delete(a.lists, id)
			continue
		}
		counts[c.Snapshot().Query]++
	}
	return counts
}

// Start starts background components.
func (a *App) Start(ctx context.Context) error {
	// Start Health Server
	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.log.Info("App started", "backend", a.cfg.Backend, "port", a.cfg.Server.Port)
	return nil
}

// Stop closes open lists and releases connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping app...")

	a.mu.Lock()
	for id, c := range a.lists {
		c.Close()
		delete(a.lists, id)
	}
	a.mu.Unlock()

	err := a.healthServer.Stop(ctx)
	a.closeBackends()
	return err
}

func (a *App) closeBackends() {
	// Close Redis
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}

	// Close DB
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}
