// AngelaMos | 2026
// handler_test.go

package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/viralforge/forge/internal/health"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ok(context.Context) error { return nil }

func fails(context.Context) error { return errors.New("connection refused") }

func serve(t *testing.T, h *health.Handler, path string) (int, health.ReadinessResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	var body health.ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestLiveness(t *testing.T) {
	t.Parallel()

	h := health.NewHandler(health.Check{Name: "database", Ping: fails})

	for _, path := range []string{"/healthz", "/livez"} {
		code, body := serve(t, h, path)
		assert.Equal(t, http.StatusOK, code, path)
		assert.Equal(t, "ok", body.Status, path)
	}
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     []health.Check
		wantCode   int
		wantStatus string
	}{
		{
			name:       "no dependencies",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all healthy",
			checks: []health.Check{
				{Name: "database", Ping: ok},
				{Name: "redis", Ping: ok, Optional: true},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "optional cache down",
			checks: []health.Check{
				{Name: "database", Ping: ok},
				{Name: "redis", Ping: fails, Optional: true},
			},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name: "store down",
			checks: []health.Check{
				{Name: "database", Ping: fails},
				{Name: "redis", Ping: ok, Optional: true},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unavailable",
		},
		{
			name:       "unconfigured checker",
			checks:     []health.Check{{Name: "supabase"}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, body := serve(t, health.NewHandler(tt.checks...), "/readyz")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body.Status)
			require.Len(t, body.Checks, len(tt.checks))
			for i, check := range tt.checks {
				assert.Equal(t, check.Name, body.Checks[i].Name)
			}
		})
	}
}

func TestReadinessRunsChecksConcurrently(t *testing.T) {
	t.Parallel()

	slow := func(ctx context.Context) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := health.NewHandler(
		health.Check{Name: "a", Ping: slow},
		health.Check{Name: "b", Ping: slow},
		health.Check{Name: "c", Ping: slow},
	)

	start := time.Now()
	code, _ := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Less(t, time.Since(start), 550*time.Millisecond)
}

func TestShutdownAndNotReady(t *testing.T) {
	t.Parallel()

	h := health.NewHandler(health.Check{Name: "database", Ping: ok})

	h.SetReady(false)
	code, body := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body.Status)

	h.SetReady(true)
	h.SetShutdown(true)
	code, body = serve(t, h, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "shutting_down", body.Status)
}
