// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const checkTimeout = 5 * time.Second

// Check is one readiness dependency. Optional checks are reported but do not
// fail readiness: the guard keeps answering from its fail-open policy when,
// say, the cache is down.
type Check struct {
	Name     string
	Ping     func(ctx context.Context) error
	Optional bool
}

type Handler struct {
	checks   []Check
	ready    atomic.Bool
	shutdown atomic.Bool
}

func NewHandler(checks ...Check) *Handler {
	h := &Handler{checks: checks}
	h.ready.Store(true)
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.shutdown.Load() {
		h.writeStatus(w, http.StatusServiceUnavailable, StatusResponse{
			Status: "shutting_down",
		})
		return
	}

	h.writeStatus(w, http.StatusOK, StatusResponse{
		Status: "ok",
	})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() {
		h.writeStatus(w, http.StatusServiceUnavailable, StatusResponse{
			Status: "shutting_down",
		})
		return
	}

	if !h.ready.Load() {
		h.writeStatus(w, http.StatusServiceUnavailable, StatusResponse{
			Status: "not_ready",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	results := h.Run(ctx)

	status := "ok"
	statusCode := http.StatusOK
	for i, result := range results {
		if result.Healthy {
			continue
		}
		if h.checks[i].Optional {
			status = "degraded"
			continue
		}
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
		break
	}

	h.writeStatus(w, statusCode, ReadinessResponse{
		Status: status,
		Checks: results,
	})
}

// Run pings every dependency concurrently. Results keep registration order.
func (h *Handler) Run(ctx context.Context) []HealthCheck {
	results := make([]HealthCheck, len(h.checks))

	var g errgroup.Group
	for i, check := range h.checks {
		g.Go(func() error {
			results[i] = runCheck(ctx, check)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // checks report through results

	return results
}

func runCheck(ctx context.Context, check Check) HealthCheck {
	result := HealthCheck{
		Name:     check.Name,
		Healthy:  true,
		Optional: check.Optional,
	}

	if check.Ping == nil {
		result.Healthy = false
		result.Message = check.Name + " checker not configured"
		return result
	}

	start := time.Now()
	err := check.Ping(ctx)
	result.Latency = time.Since(start).String()

	if err != nil {
		result.Healthy = false
		result.Message = "ping failed"
	}

	return result
}

func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handler) SetShutdown(shutdown bool) {
	h.shutdown.Store(shutdown)
}

func (h *Handler) writeStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(data)
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}
