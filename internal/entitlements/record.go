// AngelaMos | 2026
// record.go

package entitlements

import (
	"context"
	"maps"
	"time"
)

// UsageRecord is a user's metering state for the current billing period.
// Counters only grow within a period; the reset job zeroes them and moves
// UsageResetAt forward.
type UsageRecord struct {
	UserID       string            `json:"user_id"`
	Plan         PlanID            `json:"plan"`
	Used         map[Feature]int64 `json:"used"`
	Bonus        map[Feature]int64 `json:"bonus"`
	UsageResetAt time.Time         `json:"usage_reset_at"`
	CompedUntil  *time.Time        `json:"comped_until,omitempty"`
}

// NewUsageRecord returns the record a user gets at signup: free plan, all
// counters zero.
func NewUsageRecord(userID string, resetAt time.Time) *UsageRecord {
	return &UsageRecord{
		UserID:       userID,
		Plan:         PlanFree,
		Used:         map[Feature]int64{},
		Bonus:        map[Feature]int64{},
		UsageResetAt: resetAt,
	}
}

// NextReset is the start of the month after now, in UTC. Counters reset on a
// calendar-month cadence.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// UsedOf returns the counter for feature, clamped at 0.
func (r *UsageRecord) UsedOf(feature Feature) int64 {
	if r == nil {
		return 0
	}
	return max(r.Used[feature], 0)
}

// BonusOf returns the bonus grant for feature, clamped at 0.
func (r *UsageRecord) BonusOf(feature Feature) int64 {
	if r == nil {
		return 0
	}
	return max(r.Bonus[feature], 0)
}

// IsComped reports whether a comp grant is active at now.
func (r *UsageRecord) IsComped(now time.Time) bool {
	return r != nil && r.CompedUntil != nil && now.Before(*r.CompedUntil)
}

// Clone returns a deep copy.
func (r *UsageRecord) Clone() *UsageRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Used = maps.Clone(r.Used)
	out.Bonus = maps.Clone(r.Bonus)
	if out.Used == nil {
		out.Used = map[Feature]int64{}
	}
	if out.Bonus == nil {
		out.Bonus = map[Feature]int64{}
	}
	if r.CompedUntil != nil {
		until := *r.CompedUntil
		out.CompedUntil = &until
	}
	return &out
}

// UsageStore owns usage records. Implementations must return
// ErrRecordNotFound (possibly wrapped) for users without a record.
type UsageStore interface {
	FetchUsageRecord(ctx context.Context, userID string) (*UsageRecord, error)
	IncrementUsage(ctx context.Context, userID string, feature Feature) error
	ResetUsage(ctx context.Context, userID string, nextResetAt time.Time) error
}

// RecordManager adds the back-office writes that billing webhooks, the admin
// console and the monthly reset job perform. The guard never calls these.
type RecordManager interface {
	UsageStore
	SetPlan(ctx context.Context, userID string, plan PlanID) error
	GrantBonus(ctx context.Context, userID string, feature Feature, amount int64) error
	SetCompedUntil(ctx context.Context, userID string, until *time.Time) error
	ResetDue(ctx context.Context, now time.Time) (int, error)
}

// ConditionalIncrementer is implemented by stores that can increment a
// counter only while it is below limit, atomically. The bool reports whether
// the increment happened.
type ConditionalIncrementer interface {
	IncrementIfBelow(
		ctx context.Context,
		userID string,
		feature Feature,
		limit int64,
	) (bool, error)
}
