// AngelaMos | 2026
// handler.go

package usage

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
	"github.com/viralforge/forge/internal/middleware"
)

type Handler struct {
	guard     *entitlements.Guard
	validator *validator.Validate
}

func NewHandler(guard *entitlements.Guard) *Handler {
	return &Handler{
		guard:     guard,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) catalog() *entitlements.Catalog {
	return h.guard.Resolver().Catalog()
}

// RegisterRoutes mounts the public plan catalog and the caller's usage
// endpoints.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/plans", func(r chi.Router) {
		r.Get("/", h.ListPlans)
		r.Get("/compare", h.ComparePlans)
	})

	r.Route("/usage", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetSummary)
		r.Get("/{feature}", h.GetFeatureUsage)
		r.Post("/{feature}/check", h.CheckFeature)
		r.Post("/{feature}/track", h.TrackFeature)
	})
}

// RegisterGenerateRoutes mounts the metered actions. Each request is gated by
// the caller's quota for the feature in the path; limiters run after
// authentication so they can key on the user.
func (h *Handler) RegisterGenerateRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limiters ...func(http.Handler) http.Handler,
) {
	r.Route("/generate", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(limiters...)

		r.With(
			middleware.RequireFeature(h.guard, middleware.FeatureFromURLParam("feature")),
		).Post("/{feature}", h.Generate)
	})
}

func (h *Handler) ListPlans(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, ToPlanListResponse(h.catalog()))
}

func (h *Handler) ComparePlans(w http.ResponseWriter, r *http.Request) {
	q := ComparePlansQuery{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if err := h.validator.Struct(q); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	catalog := h.catalog()
	for _, id := range []string{q.From, q.To} {
		if _, ok := catalog.Lookup(entitlements.PlanID(id)); !ok {
			core.JSONError(w, core.NewAppError(
				http.StatusNotFound,
				core.CodeNotFound,
				entitlements.ErrUnknownPlan.Error()+": "+id,
			))
			return
		}
	}

	core.OK(w, catalog.Compare(
		entitlements.PlanID(q.From),
		entitlements.PlanID(q.To),
	))
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	core.OK(w, h.guard.GetUsageSummary(record))
}

func (h *Handler) GetFeatureUsage(w http.ResponseWriter, r *http.Request) {
	feature, ok := parseFeature(w, r)
	if !ok {
		return
	}

	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	core.OK(w, h.guard.GetUsage(record, feature))
}

// CheckFeature answers 200 even when the feature is blocked; the decision's
// status is the signal.
func (h *Handler) CheckFeature(w http.ResponseWriter, r *http.Request) {
	feature, ok := parseFeature(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	core.OK(w, h.guard.CheckFeature(r.Context(), userID, feature))
}

// TrackFeature records one use in the background. Metering failures never
// fail the request.
func (h *Handler) TrackFeature(w http.ResponseWriter, r *http.Request) {
	feature, ok := parseFeature(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	h.guard.TrackUsageAsync(r.Context(), userID, feature)

	core.Accepted(w, TrackResponse{Feature: feature, Queued: true})
}

// Generate stands in for the AI action behind the gate. Only successful
// responses are metered.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	feature, ok := parseFeature(w, r)
	if !ok {
		return
	}

	core.Created(w, GenerationResponse{
		ID:        uuid.NewString(),
		Feature:   feature,
		CreatedAt: time.Now().UTC(),
	})
}

func (h *Handler) loadRecord(
	w http.ResponseWriter,
	r *http.Request,
) (*entitlements.UsageRecord, bool) {
	userID := middleware.GetUserID(r.Context())

	record, err := h.guard.LoadRecord(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, "invalid user id")
			return nil, false
		}
		core.JSONError(w, core.ErrorFromSentinel(
			errors.Join(core.ErrUnavailable, err),
			"usage",
		))
		return nil, false
	}
	return record, true
}

func parseFeature(w http.ResponseWriter, r *http.Request) (entitlements.Feature, bool) {
	feature, err := entitlements.ParseFeature(chi.URLParam(r, "feature"))
	if err != nil {
		core.NotFound(w, "feature")
		return "", false
	}
	return feature, true
}
