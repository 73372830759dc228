// AngelaMos | 2026
// handler_test.go

package usage_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
	"github.com/viralforge/forge/internal/middleware"
	"github.com/viralforge/forge/internal/usage"
)

const testUser = "0b9f6f3e-2c44-4f0a-9a59-5d0b7e4c2a10"

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type envelope[T any] struct {
	Success bool            `json:"success"`
	Data    T               `json:"data"`
	Error   *core.ErrorBody `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithClaims(r.Context(), &middleware.AccessTokenClaims{
			UserID: testUser,
			Role:   middleware.RoleUser,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newGuard(store entitlements.UsageStore) *entitlements.Guard {
	resolver := entitlements.NewResolver(
		entitlements.DefaultCatalog(),
		entitlements.WithClock(func() time.Time { return testNow }),
	)
	return entitlements.NewGuard(store, resolver, entitlements.WithLogger(quietLogger()))
}

func seededStore(plan entitlements.PlanID, used map[entitlements.Feature]int64) *entitlements.MemoryStore {
	rec := entitlements.NewUsageRecord(testUser, entitlements.NextReset(testNow))
	rec.Plan = plan
	for f, n := range used {
		rec.Used[f] = n
	}
	return entitlements.NewMemoryStore(rec)
}

func newRouter(guard *entitlements.Guard) http.Handler {
	h := usage.NewHandler(guard)
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		h.RegisterRoutes(r, fakeAuth)
		h.RegisterGenerateRoutes(r, fakeAuth)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListPlans(t *testing.T) {
	t.Parallel()

	rec := do(t, newRouter(newGuard(entitlements.NewMemoryStore())), http.MethodGet, "/v1/plans")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode[usage.PlanListResponse](t, rec)
	require.Len(t, env.Data.Plans, 3)
	assert.Equal(t, entitlements.PlanFree, env.Data.Plans[0].ID)
	assert.Equal(t, 2, env.Data.Plans[2].Rank)
	assert.Equal(t, entitlements.PlanBusinessPro, env.Data.TopTier)
	assert.Equal(t, int64(200), env.Data.Plans[1].Limits[entitlements.FeatureHooks])
}

func TestComparePlans(t *testing.T) {
	t.Parallel()

	router := newRouter(newGuard(entitlements.NewMemoryStore()))

	t.Run("upgrade", func(t *testing.T) {
		t.Parallel()

		rec := do(t, router, http.MethodGet, "/v1/plans/compare?from=free&to=creator_pro")
		require.Equal(t, http.StatusOK, rec.Code)

		env := decode[entitlements.PlanComparison](t, rec)
		assert.Equal(t, []entitlements.Flag{entitlements.FlagPersonaLearning}, env.Data.GainedFlags)
		assert.Empty(t, env.Data.LostFlags)
		assert.Equal(t,
			entitlements.LimitChange{From: 10, To: 200},
			env.Data.IncreasedLimits[entitlements.FeatureHooks],
		)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()

		rec := do(t, router, http.MethodGet, "/v1/plans/compare?from=free&to=enterprise")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing target", func(t *testing.T) {
		t.Parallel()

		rec := do(t, router, http.MethodGet, "/v1/plans/compare?from=free")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[any](t, rec).Error.Message, "to is required")
	})
}

func TestGetSummary(t *testing.T) {
	t.Parallel()

	store := seededStore(entitlements.PlanCreatorPro, map[entitlements.Feature]int64{
		entitlements.FeatureHooks: 150,
	})
	rec := do(t, newRouter(newGuard(store)), http.MethodGet, "/v1/usage")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode[entitlements.UsageSummary](t, rec)
	assert.Equal(t, testUser, env.Data.UserID)
	assert.Equal(t, entitlements.PlanCreatorPro, env.Data.EffectivePlan)
	assert.Len(t, env.Data.Features, len(entitlements.AllFeatures()))
	assert.Equal(t, 17, env.Data.DaysUntilReset)

	hooks, ok := env.Data.Snapshot(entitlements.FeatureHooks)
	require.True(t, ok)
	assert.Equal(t, entitlements.StatusWarning, hooks.Status)
	assert.Equal(t, int64(50), hooks.Remaining)
}

func TestGetSummaryNewUser(t *testing.T) {
	t.Parallel()

	rec := do(t, newRouter(newGuard(entitlements.NewMemoryStore())), http.MethodGet, "/v1/usage")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decode[entitlements.UsageSummary](t, rec)
	assert.Equal(t, entitlements.PlanFree, env.Data.EffectivePlan)
	for _, snap := range env.Data.Features {
		assert.Zero(t, snap.Used, snap.Feature)
	}
}

type downStore struct{}

func (downStore) FetchUsageRecord(context.Context, string) (*entitlements.UsageRecord, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (downStore) IncrementUsage(context.Context, string, entitlements.Feature) error {
	return errors.New("dial tcp: connection refused")
}

func (downStore) ResetUsage(context.Context, string, time.Time) error {
	return errors.New("dial tcp: connection refused")
}

func TestGetSummaryStoreDown(t *testing.T) {
	t.Parallel()

	rec := do(t, newRouter(newGuard(downStore{})), http.MethodGet, "/v1/usage")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, core.CodeUnavailable, decode[any](t, rec).Error.Code)
}

func TestGetFeatureUsage(t *testing.T) {
	t.Parallel()

	store := seededStore(entitlements.PlanFree, map[entitlements.Feature]int64{
		entitlements.FeatureABTest: 2,
	})
	router := newRouter(newGuard(store))

	rec := do(t, router, http.MethodGet, "/v1/usage/abtest")
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decode[entitlements.FeatureUsageSnapshot](t, rec).Data
	assert.Equal(t, entitlements.StatusBlocked, snap.Status)
	assert.Equal(t, int64(0), snap.Remaining)
	assert.InDelta(t, 1.0, snap.Percentage, 1e-9)

	rec = do(t, router, http.MethodGet, "/v1/usage/podcasts")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckFeatureBlockedIsNotAnError(t *testing.T) {
	t.Parallel()

	store := seededStore(entitlements.PlanFree, map[entitlements.Feature]int64{
		entitlements.FeatureHooks: 10,
	})
	rec := do(t, newRouter(newGuard(store)), http.MethodPost, "/v1/usage/hooks/check")
	require.Equal(t, http.StatusOK, rec.Code)

	d := decode[entitlements.Decision](t, rec).Data
	assert.False(t, d.Allowed)
	assert.Equal(t, entitlements.StatusBlocked, d.Status)
}

func TestCheckFeatureDegraded(t *testing.T) {
	t.Parallel()

	rec := do(t, newRouter(newGuard(downStore{})), http.MethodPost, "/v1/usage/hooks/check")
	require.Equal(t, http.StatusOK, rec.Code)

	d := decode[entitlements.Decision](t, rec).Data
	assert.True(t, d.Allowed)
	assert.True(t, d.Degraded)
}

func TestTrackFeature(t *testing.T) {
	t.Parallel()

	store := seededStore(entitlements.PlanFree, nil)
	guard := newGuard(store)
	router := newRouter(guard)

	rec := do(t, router, http.MethodPost, "/v1/usage/planner/track")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, decode[usage.TrackResponse](t, rec).Data.Queued)

	guard.Wait()

	got, err := store.FetchUsageRecord(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Used[entitlements.FeaturePlanner])
}

func TestTrackFeatureStoreDownStillAccepted(t *testing.T) {
	t.Parallel()

	guard := newGuard(downStore{})
	rec := do(t, newRouter(guard), http.MethodPost, "/v1/usage/hooks/track")
	guard.Wait()

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	store := seededStore(entitlements.PlanFree, map[entitlements.Feature]int64{
		entitlements.FeatureAnalyses: 2,
	})
	guard := newGuard(store)
	router := newRouter(guard)

	rec := do(t, router, http.MethodPost, "/v1/generate/analyses")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Usage-Remaining"))
	assert.Equal(t, string(entitlements.StatusOK), rec.Header().Get("X-Usage-Status"))

	gen := decode[usage.GenerationResponse](t, rec).Data
	assert.Equal(t, entitlements.FeatureAnalyses, gen.Feature)
	assert.NotEmpty(t, gen.ID)

	guard.Wait()

	rec = do(t, router, http.MethodPost, "/v1/generate/analyses")
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, core.CodeUpgradeRequired, decode[any](t, rec).Error.Code)

	got, err := store.FetchUsageRecord(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Used[entitlements.FeatureAnalyses])
}
