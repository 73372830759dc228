// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
	"github.com/viralforge/forge/internal/middleware"
	"github.com/viralforge/forge/internal/usage"
)

const maxCompDays = 366

type Handler struct {
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	redisPing  func(ctx context.Context) error
	dbPing     func(ctx context.Context) error

	guard         *entitlements.Guard
	records       entitlements.RecordManager
	storeName     string
	cached        bool
	catalogSource string
	now           func() time.Time
	logger        *slog.Logger
	validator     *validator.Validate
}

// HandlerConfig wires the admin handler. The stats and ping functions are
// optional; Records must be the same store the guard reads so writes are
// visible to it immediately.
type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	DBPing     func(ctx context.Context) error

	Guard         *entitlements.Guard
	Records       entitlements.RecordManager
	StoreName     string
	Cached        bool
	CatalogSource string
	Now           func() time.Time
	Logger        *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		dbStats:       cfg.DBStats,
		redisStats:    cfg.RedisStats,
		redisPing:     cfg.RedisPing,
		dbPing:        cfg.DBPing,
		guard:         cfg.Guard,
		records:       cfg.Records,
		storeName:     cfg.StoreName,
		cached:        cfg.Cached,
		catalogSource: cfg.CatalogSource,
		now:           cfg.Now,
		logger:        cfg.Logger,
		validator:     validator.New(validator.WithRequiredStructEnabled()),
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.catalogSource == "" {
		h.catalogSource = "builtin"
	}
	h.logger = h.logger.With(core.Component("admin"))
	return h
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)

		r.Get("/plans", h.GetCatalog)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/usage", h.GetUserUsage)
			r.Put("/plan", h.SetPlan)
			r.Post("/bonus", h.GrantBonus)
			r.Put("/comp", h.SetComp)
			r.Post("/usage/reset", h.ResetUsage)
		})
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy, redisHealthy := true, true

	var g errgroup.Group
	if h.dbPing != nil {
		g.Go(func() error {
			dbHealthy = h.dbPing(ctx) == nil
			return nil
		})
	}
	if h.redisPing != nil {
		g.Go(func() error {
			redisHealthy = h.redisPing(ctx) == nil
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // pings report through the flags

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Runtime: readRuntimeStats(),
		Entitlements: EntitlementsStatus{
			Store:         h.storeName,
			Cached:        h.cached,
			Strict:        h.guard.Strict(),
			CatalogSource: h.catalogSource,
			TopTier:       h.guard.Resolver().Catalog().TopTier(),
		},
	}

	core.OK(w, response)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntimeStats())
}

// GetCatalog returns the active plan table and its YAML form, ready to be
// edited and loaded through PLAN_CATALOG_PATH.
func (h *Handler) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	catalog := h.guard.Resolver().Catalog()

	raw, err := entitlements.MarshalCatalog(catalog)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, CatalogResponse{
		PlanListResponse: usage.ToPlanListResponse(catalog),
		Source:           h.catalogSource,
		YAML:             string(raw),
	})
}

func (h *Handler) GetUserUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	h.writeUserUsage(w, r, userID)
}

func (h *Handler) SetPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req SetPlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	plan := entitlements.PlanID(req.Plan)
	if _, known := h.guard.Resolver().Catalog().Lookup(plan); !known {
		core.BadRequest(w, fmt.Sprintf("%s: %q", entitlements.ErrUnknownPlan, req.Plan))
		return
	}

	if err := h.records.SetPlan(r.Context(), userID, plan); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.audit(r, "plan changed", userID, core.Plan(string(plan)))
	h.writeUserUsage(w, r, userID)
}

func (h *Handler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req GrantBonusRequest
	if !h.decode(w, r, &req) {
		return
	}

	feature, err := entitlements.ParseFeature(req.Feature)
	if err != nil {
		core.BadRequest(w, err.Error())
		return
	}

	if err := h.records.GrantBonus(r.Context(), userID, feature, req.Amount); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.audit(r, "bonus granted", userID,
		core.Feature(string(feature)),
		slog.Int64("amount", req.Amount),
	)
	h.writeUserUsage(w, r, userID)
}

func (h *Handler) SetComp(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req SetCompRequest
	if !h.decode(w, r, &req) {
		return
	}

	now := h.now()
	var until *time.Time
	switch {
	case req.Until != nil && req.Days > 0:
		core.BadRequest(w, "until and days are mutually exclusive")
		return
	case req.Until != nil:
		if !req.Until.After(now) {
			core.BadRequest(w, "until must be in the future")
			return
		}
		if req.Until.After(now.AddDate(0, 0, maxCompDays)) {
			core.BadRequest(w, fmt.Sprintf("until must be within %d days", maxCompDays))
			return
		}
		t := req.Until.UTC()
		until = &t
	case req.Days > 0:
		t := now.UTC().AddDate(0, 0, req.Days)
		until = &t
	}

	if err := h.records.SetCompedUntil(r.Context(), userID, until); err != nil {
		h.writeStoreError(w, err)
		return
	}

	if until == nil {
		h.audit(r, "comp cleared", userID)
	} else {
		h.audit(r, "comp granted", userID, slog.Time("until", *until))
	}
	h.writeUserUsage(w, r, userID)
}

func (h *Handler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req ResetUsageRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	now := h.now()
	next := entitlements.NextReset(now)
	if req.NextResetAt != nil {
		if !req.NextResetAt.After(now) {
			core.BadRequest(w, "next_reset_at must be in the future")
			return
		}
		next = req.NextResetAt.UTC()
	}

	if err := h.records.ResetUsage(r.Context(), userID, next); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.audit(r, "usage reset", userID, slog.Time("next_reset_at", next))
	h.writeUserUsage(w, r, userID)
}

func (h *Handler) writeUserUsage(w http.ResponseWriter, r *http.Request, userID string) {
	record, err := h.guard.LoadRecord(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	core.OK(w, UserUsageResponse{
		Record:  record,
		Summary: h.guard.GetUsageSummary(record),
	})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userID")
	if err := h.validator.Var(userID, "required,uuid"); err != nil {
		core.BadRequest(w, "userid must be a valid UUID")
		return "", false
	}
	return userID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entitlements.ErrRecordNotFound):
		core.NotFound(w, "usage record")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid user id")
	default:
		core.JSONError(w, core.ErrorFromSentinel(
			errors.Join(core.ErrUnavailable, err),
			"usage store",
		))
	}
}

func (h *Handler) audit(r *http.Request, msg, userID string, attrs ...any) {
	args := append([]any{
		core.UserID(userID),
		slog.String("admin_id", middleware.GetUserID(r.Context())),
		core.RequestID(middleware.GetRequestID(r.Context())),
	}, attrs...)
	h.logger.InfoContext(r.Context(), msg, args...)
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}
