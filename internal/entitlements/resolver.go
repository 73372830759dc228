// AngelaMos | 2026
// resolver.go

package entitlements

import (
	"math"
	"time"
)

// FeatureUsageSnapshot is the derived view of one feature for one record.
type FeatureUsageSnapshot struct {
	Feature        Feature `json:"feature"`
	Used           int64   `json:"used"`
	Limit          int64   `json:"limit"`
	Bonus          int64   `json:"bonus"`
	EffectiveLimit int64   `json:"effective_limit"`
	Remaining      int64   `json:"remaining"`
	Percentage     float64 `json:"percentage"`
	Status         Status  `json:"status"`
}

// UsageSummary aggregates every feature snapshot and the plan's flags.
type UsageSummary struct {
	UserID         string                 `json:"user_id"`
	Plan           PlanID                 `json:"plan"`
	EffectivePlan  PlanID                 `json:"effective_plan"`
	Comped         bool                   `json:"comped"`
	Features       []FeatureUsageSnapshot `json:"features"`
	Flags          map[Flag]bool          `json:"flags"`
	UsageResetAt   time.Time              `json:"usage_reset_at"`
	DaysUntilReset int                    `json:"days_until_reset"`
}

// Snapshot returns the entry for feature, if present.
func (s UsageSummary) Snapshot(feature Feature) (FeatureUsageSnapshot, bool) {
	for _, snap := range s.Features {
		if snap.Feature == feature {
			return snap, true
		}
	}
	return FeatureUsageSnapshot{}, false
}

type ResolverOption func(*Resolver)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// Resolver turns usage records into snapshots. It holds no mutable state.
type Resolver struct {
	catalog *Catalog
	now     func() time.Time
}

func NewResolver(catalog *Catalog, opts ...ResolverOption) *Resolver {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	r := &Resolver{
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// EffectivePlan is the plan whose limits apply to record right now: the top
// tier during an active comp, the stored plan otherwise. Unknown plans
// resolve to free.
func (r *Resolver) EffectivePlan(record *UsageRecord) PlanID {
	if record == nil {
		return PlanFree
	}
	if record.IsComped(r.now()) {
		return r.catalog.TopTier()
	}
	return r.catalog.Resolve(record.Plan)
}

// SnapshotFor derives the usage of feature. A nil record behaves like a
// fresh signup.
func (r *Resolver) SnapshotFor(
	record *UsageRecord,
	feature Feature,
) FeatureUsageSnapshot {
	return r.snapshot(record, r.EffectivePlan(record), feature)
}

func (r *Resolver) snapshot(
	record *UsageRecord,
	plan PlanID,
	feature Feature,
) FeatureUsageSnapshot {
	limit := r.catalog.LimitFor(plan, feature)
	bonus := record.BonusOf(feature)
	effective := limit + bonus
	used := record.UsedOf(feature)

	percentage := 1.0
	if effective > 0 {
		percentage = float64(used) / float64(effective)
	}

	return FeatureUsageSnapshot{
		Feature:        feature,
		Used:           used,
		Limit:          limit,
		Bonus:          bonus,
		EffectiveLimit: effective,
		Remaining:      max(effective-used, 0),
		Percentage:     percentage,
		Status:         Classify(used, effective),
	}
}

// SummaryFor snapshots every known feature and copies the effective plan's
// flags.
func (r *Resolver) SummaryFor(record *UsageRecord) UsageSummary {
	now := r.now()
	plan := r.EffectivePlan(record)

	summary := UsageSummary{
		EffectivePlan: plan,
		Plan:          PlanFree,
		Features:      make([]FeatureUsageSnapshot, 0, len(allFeatures)),
		Flags:         make(map[Flag]bool, len(allFlags)),
	}

	if record != nil {
		summary.UserID = record.UserID
		summary.Plan = r.catalog.Resolve(record.Plan)
		summary.Comped = record.IsComped(now)
		summary.UsageResetAt = record.UsageResetAt
		summary.DaysUntilReset = daysUntil(now, record.UsageResetAt)
	}

	for _, f := range allFeatures {
		summary.Features = append(summary.Features, r.snapshot(record, plan, f))
	}
	for _, fl := range allFlags {
		summary.Flags[fl] = r.catalog.HasFeature(plan, fl)
	}

	return summary
}

func daysUntil(now, resetAt time.Time) int {
	if resetAt.IsZero() {
		return 0
	}
	days := math.Ceil(resetAt.Sub(now).Hours() / 24)
	return int(max(days, 0))
}
