// AngelaMos | 2026
// cached_store.go

package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
)

const cacheKeyPrefix = "usage:record:"

// Backend is what every persistent store in this package provides.
type Backend interface {
	entitlements.RecordManager
	entitlements.ConditionalIncrementer
}

// RecordCache is the slice of core.Redis the cached store needs.
type RecordCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedStore serves FetchUsageRecord from a short-lived cache in front of
// a Backend. Every write goes to the backend first and then drops the cached
// copy, so a stale record lives at most one TTL. Cache failures are logged
// and fall through to the backend.
type CachedStore struct {
	backend Backend
	cache   RecordCache
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCachedStore(
	backend Backend,
	cache RecordCache,
	ttl time.Duration,
	logger *slog.Logger,
) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		backend: backend,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With(core.Component("usage_cache")),
	}
}

func cacheKey(userID string) string {
	return cacheKeyPrefix + userID
}

func (s *CachedStore) FetchUsageRecord(
	ctx context.Context,
	userID string,
) (*entitlements.UsageRecord, error) {
	key := cacheKey(userID)

	var cached entitlements.UsageRecord
	found, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.WarnContext(ctx, "usage cache read failed", core.UserID(userID), core.Err(err))
	}
	if found {
		return cached.Clone(), nil
	}

	record, err := s.backend.FetchUsageRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, key, record, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "usage cache write failed", core.UserID(userID), core.Err(err))
	}
	return record, nil
}

func (s *CachedStore) IncrementUsage(
	ctx context.Context,
	userID string,
	feature entitlements.Feature,
) error {
	if err := s.backend.IncrementUsage(ctx, userID, feature); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CachedStore) IncrementIfBelow(
	ctx context.Context,
	userID string,
	feature entitlements.Feature,
	limit int64,
) (bool, error) {
	ok, err := s.backend.IncrementIfBelow(ctx, userID, feature, limit)
	if err != nil {
		return false, err
	}
	if ok {
		s.invalidate(ctx, userID)
	}
	return ok, nil
}

func (s *CachedStore) ResetUsage(
	ctx context.Context,
	userID string,
	nextResetAt time.Time,
) error {
	if err := s.backend.ResetUsage(ctx, userID, nextResetAt); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CachedStore) SetPlan(
	ctx context.Context,
	userID string,
	plan entitlements.PlanID,
) error {
	if err := s.backend.SetPlan(ctx, userID, plan); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CachedStore) GrantBonus(
	ctx context.Context,
	userID string,
	feature entitlements.Feature,
	amount int64,
) error {
	if err := s.backend.GrantBonus(ctx, userID, feature, amount); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CachedStore) SetCompedUntil(
	ctx context.Context,
	userID string,
	until *time.Time,
) error {
	if err := s.backend.SetCompedUntil(ctx, userID, until); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// ResetDue does not know which users were reset, so cached records are left
// to expire on their own.
func (s *CachedStore) ResetDue(ctx context.Context, now time.Time) (int, error) {
	return s.backend.ResetDue(ctx, now)
}

func (s *CachedStore) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, cacheKey(userID)); err != nil {
		s.logger.WarnContext(ctx, "usage cache invalidation failed",
			core.UserID(userID),
			core.Err(err),
		)
	}
}

var (
	_ Backend     = (*CachedStore)(nil)
	_ Backend     = (*entitlements.MemoryStore)(nil)
	_ RecordCache = (*core.Redis)(nil)
)
