// AngelaMos | 2026
// serve.go

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/viralforge/forge/internal/admin"
	"github.com/viralforge/forge/internal/auth"
	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
	"github.com/viralforge/forge/internal/health"
	"github.com/viralforge/forge/internal/middleware"
	"github.com/viralforge/forge/internal/server"
	"github.com/viralforge/forge/internal/usage"
)

const (
	tracerName          = "github.com/viralforge/forge/internal/entitlements"
	generateBurstFactor = 4
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(
		&serveMigrate, "migrate", false,
		"apply pending migrations before serving (postgres store only)",
	)
}

//nolint:funlen // bootstrap code is inherently verbose
func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(
		cmd.Context(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"usage_store", cfg.Usage.Store,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	if telemetry.Exporting() {
		logger.Info("OpenTelemetry exporter initialized",
			"endpoint", cfg.Otel.Endpoint,
		)
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if serveMigrate && b.db != nil {
		src := usage.Migrations(cfg.Database.MigrationsTable)
		if err := b.db.Migrate(ctx, src, logger); err != nil {
			b.close(logger)
			return err
		}
	}

	catalog, catalogSource, err := loadCatalog(cfg)
	if err != nil {
		b.close(logger)
		return err
	}
	logger.Info("plan catalog loaded",
		"source", catalogSource,
		"plans", len(catalog.Plans()),
		"top_tier", catalog.TopTier(),
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		b.close(logger)
		return err
	}

	guard := entitlements.NewGuard(
		b.store,
		entitlements.NewResolver(catalog),
		entitlements.WithFailOpen(cfg.Entitlements.FailOpen),
		entitlements.WithStrictMetering(cfg.Entitlements.StrictMetering),
		entitlements.WithStoreTimeout(cfg.Entitlements.StoreTimeout),
		entitlements.WithLogger(logger),
		entitlements.WithTracer(telemetry.Named(tracerName)),
	)

	healthHandler := health.NewHandler(b.checks...)
	usageHandler := usage.NewHandler(guard)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:       b.dbStats(),
		RedisStats:    b.redisStats(),
		DBPing:        b.dbPing(),
		RedisPing:     b.redisPing(),
		Guard:         guard,
		Records:       b.store,
		StoreName:     cfg.Usage.Store,
		Cached:        cfg.CacheEnabled() && b.redis != nil,
		CatalogSource: catalogSource,
		Logger:        logger,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()
	rdb := b.redisClient()

	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	authenticator := middleware.Authenticator(jwtManager)
	adminOnly := middleware.RequireAdmin

	generateLimiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
		Limit: middleware.PerMinute(
			cfg.RateLimit.Requests,
			max(cfg.RateLimit.Burst/generateBurstFactor, 1),
		),
		KeyFunc:  middleware.KeyByUserAndEndpoint,
		FailOpen: true,
	})

	router.Route("/v1", func(r chi.Router) {
		usageHandler.RegisterRoutes(r, authenticator)
		usageHandler.RegisterGenerateRoutes(
			r,
			authenticator,
			middleware.TieredRateLimiter(rdb, middleware.DefaultTiers),
			generateLimiter.Handler,
		)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	var serveErr error
	select {
	case serveErr = <-errChan:
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+cfg.Server.DrainDelay+5*time.Second,
	)
	defer cancel()

	if serveErr == nil {
		if err := srv.Shutdown(shutdownCtx, cfg.Server.DrainDelay); err != nil {
			logger.Error("server shutdown error", core.Err(err))
		}
	}

	guard.Wait()

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", core.Err(err))
	}

	b.close(logger)

	logger.Info("application stopped")
	return serveErr
}
