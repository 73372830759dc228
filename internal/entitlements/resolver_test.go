// AngelaMos | 2026
// resolver_test.go

package entitlements_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/forge/internal/entitlements"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestResolver() *entitlements.Resolver {
	return entitlements.NewResolver(
		entitlements.DefaultCatalog(),
		entitlements.WithClock(func() time.Time { return fixedNow }),
	)
}

func recordWith(
	plan entitlements.PlanID,
	used map[entitlements.Feature]int64,
	bonus map[entitlements.Feature]int64,
) *entitlements.UsageRecord {
	r := entitlements.NewUsageRecord("user-1", entitlements.NextReset(fixedNow))
	r.Plan = plan
	if used != nil {
		r.Used = used
	}
	if bonus != nil {
		r.Bonus = bonus
	}
	return r
}

func TestSnapshotForNearLimit(t *testing.T) {
	t.Parallel()

	r := newTestResolver()
	rec := recordWith(entitlements.PlanFree,
		map[entitlements.Feature]int64{entitlements.FeatureHooks: 7}, nil)

	snap := r.SnapshotFor(rec, entitlements.FeatureHooks)

	assert.Equal(t, int64(10), snap.Limit)
	assert.Equal(t, int64(10), snap.EffectiveLimit)
	assert.Equal(t, int64(3), snap.Remaining)
	assert.InDelta(t, 0.7, snap.Percentage, 1e-9)
	assert.Equal(t, entitlements.StatusWarning, snap.Status)
}

func TestSnapshotForExhausted(t *testing.T) {
	t.Parallel()

	r := newTestResolver()
	rec := recordWith(entitlements.PlanFree,
		map[entitlements.Feature]int64{entitlements.FeatureHooks: 10}, nil)

	snap := r.SnapshotFor(rec, entitlements.FeatureHooks)
	assert.Equal(t, entitlements.StatusBlocked, snap.Status)
	assert.Equal(t, int64(0), snap.Remaining)

	g := entitlements.NewGuard(entitlements.NewMemoryStore(), r)
	d := g.Check(rec, entitlements.FeatureHooks)
	assert.False(t, d.Allowed)
	assert.Equal(t, entitlements.StatusBlocked, d.Status)
}

func TestSnapshotForBonusExtendsLimit(t *testing.T) {
	t.Parallel()

	r := newTestResolver()
	rec := recordWith(entitlements.PlanCreatorPro,
		map[entitlements.Feature]int64{entitlements.FeatureBrandKits: 2},
		map[entitlements.Feature]int64{entitlements.FeatureBrandKits: 2},
	)

	snap := r.SnapshotFor(rec, entitlements.FeatureBrandKits)

	assert.Equal(t, int64(1), snap.Limit)
	assert.Equal(t, int64(2), snap.Bonus)
	assert.Equal(t, int64(3), snap.EffectiveLimit)
	assert.Equal(t, int64(1), snap.Remaining)
	assert.Equal(t, entitlements.StatusOK, snap.Status)
}

func TestSnapshotForUnknownPlan(t *testing.T) {
	t.Parallel()

	r := newTestResolver()
	unknown := recordWith("enterprise_trial", nil, nil)
	free := recordWith(entitlements.PlanFree, nil, nil)

	for _, f := range entitlements.AllFeatures() {
		if diff := cmp.Diff(r.SnapshotFor(free, f), r.SnapshotFor(unknown, f)); diff != "" {
			t.Errorf("feature %s mismatch (-free +unknown):\n%s", f, diff)
		}
	}
	assert.Equal(t, entitlements.PlanFree, r.EffectivePlan(unknown))
}

func TestSnapshotForZeroLimit(t *testing.T) {
	t.Parallel()

	r := newTestResolver()
	snap := r.SnapshotFor(recordWith(entitlements.PlanFree, nil, nil), entitlements.FeatureBrandKits)

	assert.Equal(t, int64(0), snap.EffectiveLimit)
	assert.Equal(t, int64(0), snap.Remaining)
	assert.InDelta(t, 1.0, snap.Percentage, 1e-9)
	assert.Equal(t, entitlements.StatusBlocked, snap.Status)
}

func TestSnapshotForOverLimit(t *testing.T) {
	t.Parallel()

	r := newTestResolver()
	rec := recordWith(entitlements.PlanFree,
		map[entitlements.Feature]int64{entitlements.FeatureHooks: 15}, nil)

	snap := r.SnapshotFor(rec, entitlements.FeatureHooks)
	assert.Equal(t, int64(0), snap.Remaining)
	assert.InDelta(t, 1.5, snap.Percentage, 1e-9)
	assert.Equal(t, entitlements.StatusBlocked, snap.Status)
}

func TestSnapshotForNilRecord(t *testing.T) {
	t.Parallel()

	snap := newTestResolver().SnapshotFor(nil, entitlements.FeatureHooks)
	assert.Equal(t, int64(0), snap.Used)
	assert.Equal(t, int64(10), snap.EffectiveLimit)
	assert.Equal(t, entitlements.StatusOK, snap.Status)
}

func TestSnapshotForIsIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestResolver()
	rec := recordWith(entitlements.PlanCreatorPro,
		map[entitlements.Feature]int64{entitlements.FeatureAnalyses: 44},
		map[entitlements.Feature]int64{entitlements.FeatureAnalyses: 5},
	)
	before := rec.Clone()

	first := r.SummaryFor(rec)
	second := r.SummaryFor(rec)

	assert.Empty(t, cmp.Diff(first, second))
	assert.Empty(t, cmp.Diff(before, rec), "resolver must not mutate the record")
}

func TestSummaryForComped(t *testing.T) {
	t.Parallel()

	r := newTestResolver()

	t.Run("active comp uses top tier", func(t *testing.T) {
		t.Parallel()

		until := fixedNow.Add(72 * time.Hour)
		rec := recordWith(entitlements.PlanFree, nil, nil)
		rec.CompedUntil = &until

		s := r.SummaryFor(rec)
		assert.True(t, s.Comped)
		assert.Equal(t, entitlements.PlanFree, s.Plan)
		assert.Equal(t, entitlements.PlanBusinessPro, s.EffectivePlan)

		hooks, ok := s.Snapshot(entitlements.FeatureHooks)
		require.True(t, ok)
		assert.Equal(t, int64(1000), hooks.Limit)
		assert.True(t, s.Flags[entitlements.FlagWhiteLabel])
	})

	t.Run("expired comp uses stored plan", func(t *testing.T) {
		t.Parallel()

		until := fixedNow.Add(-time.Minute)
		rec := recordWith(entitlements.PlanFree, nil, nil)
		rec.CompedUntil = &until

		s := r.SummaryFor(rec)
		assert.False(t, s.Comped)
		assert.Equal(t, entitlements.PlanFree, s.EffectivePlan)
		assert.False(t, s.Flags[entitlements.FlagWhiteLabel])
	})
}

func TestSummaryForCoversEveryFeature(t *testing.T) {
	t.Parallel()

	s := newTestResolver().SummaryFor(recordWith(entitlements.PlanCreatorPro, nil, nil))

	require.Len(t, s.Features, len(entitlements.AllFeatures()))
	for i, f := range entitlements.AllFeatures() {
		assert.Equal(t, f, s.Features[i].Feature)
	}
	assert.Len(t, s.Flags, len(entitlements.AllFlags()))
	assert.True(t, s.Flags[entitlements.FlagPersonaLearning])
	assert.False(t, s.Flags[entitlements.FlagAPIAccess])
}

func TestSummaryForDaysUntilReset(t *testing.T) {
	t.Parallel()

	r := newTestResolver()

	tests := []struct {
		name    string
		resetAt time.Time
		want    int
	}{
		{"partial day rounds up", fixedNow.Add(36 * time.Hour), 2},
		{"exact days", fixedNow.Add(48 * time.Hour), 2},
		{"minutes away", fixedNow.Add(5 * time.Minute), 1},
		{"already passed", fixedNow.Add(-24 * time.Hour), 0},
		{"unset", time.Time{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := recordWith(entitlements.PlanFree, nil, nil)
			rec.UsageResetAt = tt.resetAt
			assert.Equal(t, tt.want, r.SummaryFor(rec).DaysUntilReset)
		})
	}
}

func TestNextReset(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		entitlements.NextReset(fixedNow),
	)
	assert.Equal(t,
		time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		entitlements.NextReset(time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)),
	)
}
