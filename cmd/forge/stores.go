// AngelaMos | 2026
// stores.go

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/viralforge/forge/internal/config"
	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
	"github.com/viralforge/forge/internal/health"
	"github.com/viralforge/forge/internal/usage"
)

// backends is everything the configured usage store needs at runtime.
type backends struct {
	store  usage.Backend
	db     *core.Database
	redis  *core.Redis
	checks []health.Check
	closer []func() error
}

func (b *backends) close(logger *slog.Logger) {
	for i := len(b.closer) - 1; i >= 0; i-- {
		if err := b.closer[i](); err != nil {
			logger.Error("close backend", core.Err(err))
		}
	}
}

func (b *backends) dbStats() func() sql.DBStats {
	if b.db == nil {
		return nil
	}
	return b.db.Stats
}

func (b *backends) dbPing() func(context.Context) error {
	if b.db == nil {
		return nil
	}
	return b.db.Ping
}

func (b *backends) redisStats() func() *redis.PoolStats {
	if b.redis == nil {
		return nil
	}
	return b.redis.PoolStats
}

func (b *backends) redisPing() func(context.Context) error {
	if b.redis == nil {
		return nil
	}
	return b.redis.Ping
}

func (b *backends) redisClient() *redis.Client {
	if b.redis == nil {
		return nil
	}
	return b.redis.Client
}

// openBackends connects the usage store selected by usage.store and, when
// configured, Redis. Redis is optional: without it the store is not cached
// and rate limits are enforced per process.
func openBackends(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*backends, error) {
	b := &backends{}

	switch cfg.Usage.Store {
	case config.UsageStorePostgres:
		db, err := core.NewDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		b.db = db
		b.closer = append(b.closer, db.Close)
		b.checks = append(b.checks, health.Check{Name: "database", Ping: db.Ping})
		b.store = usage.NewPostgresStore(db.DB)

		logger.Info("database connected",
			"max_open_conns", cfg.Database.MaxOpenConns,
			"max_idle_conns", cfg.Database.MaxIdleConns,
		)

	case config.UsageStoreSupabase:
		client, err := usage.NewSupabaseClient(cfg.Supabase.URL, cfg.Supabase.Key)
		if err != nil {
			return nil, err
		}
		store := usage.NewSupabaseStore(client)
		b.checks = append(b.checks, health.Check{Name: "supabase", Ping: store.Ping})
		b.store = store

		logger.Info("supabase client initialized", "url", cfg.Supabase.URL)

	case config.UsageStoreMemory:
		b.store = entitlements.NewMemoryStore()
		logger.Warn("using in-memory usage store, counters are lost on restart")

	default:
		return nil, fmt.Errorf("unknown usage store %q", cfg.Usage.Store)
	}

	if cfg.Redis.URL != "" {
		rdb, err := core.NewRedis(ctx, cfg.Redis)
		if err != nil {
			b.close(logger)
			return nil, err
		}
		b.redis = rdb
		b.closer = append(b.closer, rdb.Close)
		b.checks = append(b.checks, health.Check{Name: "redis", Ping: rdb.Ping, Optional: true})

		logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)
	}

	if cfg.CacheEnabled() && b.redis != nil {
		b.store = usage.NewCachedStore(b.store, b.redis, cfg.Usage.CacheTTL, logger)
		logger.Info("usage record cache enabled", "ttl", cfg.Usage.CacheTTL.String())
	}

	return b, nil
}

// openDatabase is used by commands that only need Postgres.
func openDatabase(ctx context.Context, cfg *config.Config) (*core.Database, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return core.NewDatabase(ctx, cfg.Database)
}

func loadCatalog(cfg *config.Config) (*entitlements.Catalog, string, error) {
	if cfg.Entitlements.CatalogPath == "" {
		return entitlements.DefaultCatalog(), "builtin", nil
	}

	catalog, err := entitlements.LoadCatalogFile(cfg.Entitlements.CatalogPath)
	if err != nil {
		return nil, "", err
	}
	return catalog, cfg.Entitlements.CatalogPath, nil
}
