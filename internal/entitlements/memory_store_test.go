// AngelaMos | 2026
// memory_store_test.go

package entitlements_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/forge/internal/entitlements"
)

func TestMemoryStoreFetchMissing(t *testing.T) {
	t.Parallel()

	_, err := entitlements.NewMemoryStore().FetchUsageRecord(context.Background(), "nobody")
	assert.ErrorIs(t, err, entitlements.ErrRecordNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := seeded(entitlements.PlanFree, entitlements.FeatureHooks, 2)
	ctx := context.Background()

	rec, err := store.FetchUsageRecord(ctx, "user-1")
	require.NoError(t, err)
	rec.Used[entitlements.FeatureHooks] = 99

	again, err := store.FetchUsageRecord(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Used[entitlements.FeatureHooks])
}

func TestMemoryStoreIncrementIfBelow(t *testing.T) {
	t.Parallel()

	store := entitlements.NewMemoryStore()
	ctx := context.Background()

	for i := range 3 {
		ok, err := store.IncrementIfBelow(ctx, "user-1", entitlements.FeatureABTest, 3)
		require.NoError(t, err)
		assert.True(t, ok, "increment %d", i)
	}

	ok, err := store.IncrementIfBelow(ctx, "user-1", entitlements.FeatureABTest, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.IncrementIfBelow(ctx, "user-1", entitlements.FeatureBrandKits, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreBackOfficeWrites(t *testing.T) {
	t.Parallel()

	store := entitlements.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SetPlan(ctx, "user-1", entitlements.PlanCreatorPro))
	require.NoError(t, store.GrantBonus(ctx, "user-1", entitlements.FeatureHooks, 25))
	require.NoError(t, store.GrantBonus(ctx, "user-1", entitlements.FeatureHooks, -40))
	require.NoError(t, store.GrantBonus(ctx, "user-1", entitlements.FeaturePlanner, 4))

	until := fixedNow.Add(24 * time.Hour)
	require.NoError(t, store.SetCompedUntil(ctx, "user-1", &until))
	until = until.Add(time.Hour)

	rec, err := store.FetchUsageRecord(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, entitlements.PlanCreatorPro, rec.Plan)
	assert.Equal(t, int64(0), rec.Bonus[entitlements.FeatureHooks])
	assert.Equal(t, int64(4), rec.Bonus[entitlements.FeaturePlanner])
	require.NotNil(t, rec.CompedUntil)
	assert.Equal(t, fixedNow.Add(24*time.Hour), *rec.CompedUntil)

	require.NoError(t, store.SetCompedUntil(ctx, "user-1", nil))
	rec, err = store.FetchUsageRecord(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, rec.CompedUntil)
}

func TestMemoryStoreReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	due := entitlements.NewUsageRecord("due", fixedNow.Add(-time.Hour))
	due.Used[entitlements.FeatureHooks] = 8
	due.Bonus[entitlements.FeatureHooks] = 3

	notDue := entitlements.NewUsageRecord("later", fixedNow.Add(time.Hour))
	notDue.Used[entitlements.FeatureHooks] = 5

	store := entitlements.NewMemoryStore(due, notDue)

	n, err := store.ResetDue(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := store.FetchUsageRecord(ctx, "due")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.UsedOf(entitlements.FeatureHooks))
	assert.Equal(t, int64(3), rec.BonusOf(entitlements.FeatureHooks))
	assert.Equal(t, entitlements.NextReset(fixedNow), rec.UsageResetAt)

	rec, err = store.FetchUsageRecord(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.UsedOf(entitlements.FeatureHooks))

	next := fixedNow.Add(30 * 24 * time.Hour)
	require.NoError(t, store.ResetUsage(ctx, "later", next))
	rec, err = store.FetchUsageRecord(ctx, "later")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.UsedOf(entitlements.FeatureHooks))
	assert.Equal(t, next, rec.UsageResetAt)

	assert.ErrorIs(t,
		store.ResetUsage(ctx, "nobody", next),
		entitlements.ErrRecordNotFound,
	)
}
