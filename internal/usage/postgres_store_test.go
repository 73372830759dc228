// AngelaMos | 2026
// postgres_store_test.go

package usage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/forge/internal/config"
	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
	"github.com/viralforge/forge/internal/usage"
)

// newPostgresDB connects to FORGE_TEST_DATABASE_URL and applies the
// migrations. Tests using it are skipped when the variable is unset.
func newPostgresDB(t *testing.T) *core.Database {
	t.Helper()

	url := os.Getenv("FORGE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FORGE_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := core.NewDatabase(ctx, config.DatabaseConfig{
		URL:             url,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.Migrate(ctx, usage.Migrations("forge_test_migrations"), logger))

	return db
}

func newPostgresStore(t *testing.T) *usage.PostgresStore {
	t.Helper()
	return usage.NewPostgresStore(newPostgresDB(t).DB)
}

var errRollback = errors.New("rollback")

// inRolledBackTx runs fn against a store bound to a transaction that is
// always rolled back, for tests that touch rows beyond their own user.
func inRolledBackTx(t *testing.T, fn func(store *usage.PostgresStore)) {
	t.Helper()

	db := newPostgresDB(t)
	err := core.InTx(context.Background(), db.DB, func(tx *sqlx.Tx) error {
		fn(usage.NewPostgresStore(tx))
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)
}

func TestPostgresStoreLifecycle(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	_, err := store.FetchUsageRecord(ctx, userID)
	require.ErrorIs(t, err, entitlements.ErrRecordNotFound)

	require.NoError(t, store.IncrementUsage(ctx, userID, entitlements.FeatureHooks))
	require.NoError(t, store.IncrementUsage(ctx, userID, entitlements.FeatureHooks))
	require.NoError(t, store.GrantBonus(ctx, userID, entitlements.FeatureABTest, 3))
	require.NoError(t, store.GrantBonus(ctx, userID, entitlements.FeatureABTest, -10))
	require.NoError(t, store.SetPlan(ctx, userID, entitlements.PlanCreatorPro))

	until := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, store.SetCompedUntil(ctx, userID, &until))

	rec, err := store.FetchUsageRecord(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, rec.UserID)
	assert.Equal(t, entitlements.PlanCreatorPro, rec.Plan)
	assert.Equal(t, int64(2), rec.Used[entitlements.FeatureHooks])
	assert.Zero(t, rec.Bonus[entitlements.FeatureABTest])
	require.NotNil(t, rec.CompedUntil)
	assert.True(t, until.Equal(*rec.CompedUntil))
	assert.True(t, entitlements.NextReset(time.Now()).Equal(rec.UsageResetAt))

	next := entitlements.NextReset(time.Now()).AddDate(0, 1, 0)
	require.NoError(t, store.ResetUsage(ctx, userID, next))

	rec, err = store.FetchUsageRecord(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, rec.Used[entitlements.FeatureHooks])
	assert.True(t, next.Equal(rec.UsageResetAt))
}

func TestPostgresStoreResetUsageMissing(t *testing.T) {
	store := newPostgresStore(t)

	err := store.ResetUsage(context.Background(), uuid.NewString(), time.Now())
	assert.ErrorIs(t, err, entitlements.ErrRecordNotFound)
}

func TestPostgresStoreInvalidUserID(t *testing.T) {
	store := newPostgresStore(t)

	_, err := store.FetchUsageRecord(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestPostgresStoreIncrementIfBelowIsAtomic(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	const limit = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.IncrementIfBelow(ctx, userID, entitlements.FeatureAnalyses, limit)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, granted)

	rec, err := store.FetchUsageRecord(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(limit), rec.Used[entitlements.FeatureAnalyses])

	ok, err := store.IncrementIfBelow(ctx, userID, entitlements.FeatureBrandKits, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStoreResetDue(t *testing.T) {
	inRolledBackTx(t, func(store *usage.PostgresStore) {
		ctx := context.Background()
		userID := uuid.NewString()

		require.NoError(t, store.IncrementUsage(ctx, userID, entitlements.FeaturePlanner))

		later := entitlements.NextReset(time.Now()).Add(time.Hour)
		n, err := store.ResetDue(ctx, later)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		rec, err := store.FetchUsageRecord(ctx, userID)
		require.NoError(t, err)
		assert.Zero(t, rec.Used[entitlements.FeaturePlanner])
		assert.True(t, entitlements.NextReset(later).Equal(rec.UsageResetAt))
	})
}
