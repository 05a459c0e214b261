package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/visit-trip-linker/internal/config"
	"github.com/example/visit-trip-linker/internal/dispatch"
	"github.com/example/visit-trip-linker/internal/geo"
	"github.com/example/visit-trip-linker/internal/ingest"
	"github.com/example/visit-trip-linker/internal/logging"
	"github.com/example/visit-trip-linker/internal/matcher"
	"github.com/example/visit-trip-linker/internal/service"
	"github.com/example/visit-trip-linker/internal/storage"
)

// App holds the shared components of every linker binary.
type App struct {
	Config config.ServerConfig
	Logger *slog.Logger
	Linker *service.Linker
	Store  storage.ResultStore
	Hub    *dispatch.WSHub

	// Source is nil unless SOURCE_DSN is set.
	Source *ingest.PGSource

	checks  map[string]func(context.Context) error
	closers []func() error
}

// New wires stores, publisher and engine from cfg. Backends that are not
// configured are left out; without Redis or Postgres results live in memory.
func New(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{Config: cfg, Logger: logger, checks: map[string]func(context.Context) error{}}

	distance, err := geo.ByName(cfg.DistanceModel)
	if err != nil {
		return nil, err
	}

	var stores storage.MultiStore
	if cfg.RedisAddr != "" {
		rs := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisKeyPrefix, cfg.RedisResultTTL)
		a.closers = append(a.closers, rs.Close)
		a.checks["redis"] = rs.Ping
		stores = append(stores, rs)
	}
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		a.closers = append(a.closers, ps.Close)
		a.checks["postgres"] = ps.Ping
		if cfg.RunMigrations {
			if err := ps.Migrate(ctx); err != nil {
				a.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("result schema migrated")
		}
		stores = append(stores, ps)
	}
	switch len(stores) {
	case 0:
		a.Store = storage.NewMemoryStore()
	case 1:
		a.Store = stores[0]
	default:
		a.Store = stores
	}

	if cfg.SourceDSN != "" {
		src, err := ingest.NewPGSource(ctx, cfg.SourceDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("source db: %w", err)
		}
		a.closers = append(a.closers, func() error { src.Close(); return nil })
		a.Source = src
	}

	a.Hub = dispatch.NewWSHub(logging.Component(logger, "ws"))
	a.Linker = &service.Linker{
		Engine: &matcher.Engine{
			Matcher: matcher.New(cfg.Match, distance, logging.Component(logger, "matcher")),
			Workers: cfg.Workers,
			Logger:  logging.Component(logger, "engine"),
		},
		Store:  a.Store,
		Feed:   a.Hub,
		Logger: logging.Component(logger, "linker"),
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := ingest.NewResultPublisher(cfg.KafkaBrokers, cfg.KafkaResultsTopic)
		a.closers = append(a.closers, pub.Close)
		a.Linker.Publisher = pub
	}

	logger.Info("linker wired",
		"redis", cfg.RedisAddr != "",
		"postgres", cfg.PGDSN != "",
		"source_db", a.Source != nil,
		"kafka", len(cfg.KafkaBrokers) > 0,
		"distance_model", cfg.DistanceModel,
		"workers", cfg.Workers,
	)
	return a, nil
}

// Ready pings every configured backend.
func (a *App) Ready(ctx context.Context) error {
	var errs []error
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases backends in reverse order of creation.
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
