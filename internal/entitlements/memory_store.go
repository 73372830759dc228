// AngelaMos | 2026
// memory_store.go

package entitlements

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process UsageStore for development and tests.
// Records are copied on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*UsageRecord
	now     func() time.Time
}

func NewMemoryStore(records ...*UsageRecord) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*UsageRecord, len(records)),
		now:     time.Now,
	}
	for _, r := range records {
		s.records[r.UserID] = r.Clone()
	}
	return s
}

func (s *MemoryStore) FetchUsageRecord(
	_ context.Context,
	userID string,
) (*UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", userID, ErrRecordNotFound)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) IncrementUsage(
	_ context.Context,
	userID string,
	feature Feature,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordLocked(userID).Used[feature]++
	return nil
}

func (s *MemoryStore) IncrementIfBelow(
	_ context.Context,
	userID string,
	feature Feature,
	limit int64,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recordLocked(userID)
	if r.Used[feature] >= limit {
		return false, nil
	}
	r.Used[feature]++
	return true, nil
}

func (s *MemoryStore) ResetUsage(
	_ context.Context,
	userID string,
	nextResetAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[userID]
	if !ok {
		return fmt.Errorf("reset %s: %w", userID, ErrRecordNotFound)
	}
	r.Used = map[Feature]int64{}
	r.UsageResetAt = nextResetAt
	return nil
}

// Put replaces the stored record for r.UserID.
func (s *MemoryStore) Put(r *UsageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.UserID] = r.Clone()
}

func (s *MemoryStore) SetPlan(_ context.Context, userID string, plan PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(userID).Plan = plan
	return nil
}

func (s *MemoryStore) GrantBonus(
	_ context.Context,
	userID string,
	feature Feature,
	amount int64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recordLocked(userID)
	r.Bonus[feature] = max(r.Bonus[feature]+amount, 0)
	return nil
}

func (s *MemoryStore) SetCompedUntil(
	_ context.Context,
	userID string,
	until *time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recordLocked(userID)
	if until == nil {
		r.CompedUntil = nil
		return nil
	}
	t := *until
	r.CompedUntil = &t
	return nil
}

// ResetDue resets every record whose reset time has passed and returns how
// many were reset.
func (s *MemoryStore) ResetDue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.records {
		if !r.UsageResetAt.After(now) {
			r.Used = map[Feature]int64{}
			r.UsageResetAt = NextReset(now)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) recordLocked(userID string) *UsageRecord {
	r, ok := s.records[userID]
	if !ok {
		r = NewUsageRecord(userID, NextReset(s.now()))
		s.records[userID] = r
	}
	if r.Used == nil {
		r.Used = map[Feature]int64{}
	}
	if r.Bonus == nil {
		r.Bonus = map[Feature]int64{}
	}
	return r
}

var (
	_ RecordManager          = (*MemoryStore)(nil)
	_ ConditionalIncrementer = (*MemoryStore)(nil)
)
