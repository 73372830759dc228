// AngelaMos | 2026
// guard.go

package entitlements

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultStoreTimeout = 2 * time.Second
	tracerName          = "github.com/viralforge/forge/internal/entitlements"
)

// Decision is the answer to "may this user perform feature right now".
// Degraded is set when the usage record could not be read and the answer
// came from the fail-open or fail-closed policy instead of real counters.
type Decision struct {
	Feature   Feature `json:"feature"`
	Allowed   bool    `json:"allowed"`
	Status    Status  `json:"status"`
	Remaining int64   `json:"remaining"`
	Degraded  bool    `json:"degraded,omitempty"`
}

func decisionFrom(snap FeatureUsageSnapshot) Decision {
	return Decision{
		Feature:   snap.Feature,
		Allowed:   snap.Status != StatusBlocked,
		Status:    snap.Status,
		Remaining: snap.Remaining,
	}
}

type GuardOption func(*Guard)

// WithFailOpen selects what CheckFeature answers when the store read fails.
// true lets the action through, false blocks it.
func WithFailOpen(failOpen bool) GuardOption {
	return func(g *Guard) {
		g.failOpen = failOpen
	}
}

// WithStoreTimeout bounds every store call. A timed out read is a failed read.
func WithStoreTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.storeTimeout = d
		}
	}
}

// WithStrictMetering makes Consume use the store's atomic conditional
// increment when available.
func WithStrictMetering(strict bool) GuardOption {
	return func(g *Guard) {
		g.strict = strict
	}
}

func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) GuardOption {
	return func(g *Guard) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// Guard is the entry point for gating actions and recording their usage.
//
// Check and TrackUsage are separate calls with no reservation between them:
// two concurrent requests at the quota boundary can both pass Check and both
// be counted, overshooting the effective limit. Use Consume with a store that
// implements ConditionalIncrementer and strict metering enabled when that is
// not acceptable.
type Guard struct {
	store        UsageStore
	resolver     *Resolver
	logger       *slog.Logger
	tracer       trace.Tracer
	failOpen     bool
	strict       bool
	storeTimeout time.Duration
	pending      sync.WaitGroup
}

func NewGuard(store UsageStore, resolver *Resolver, opts ...GuardOption) *Guard {
	if resolver == nil {
		resolver = NewResolver(nil)
	}

	g := &Guard{
		store:        store,
		resolver:     resolver,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		failOpen:     true,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) Resolver() *Resolver {
	return g.resolver
}

// Strict reports whether Consume enforces limits atomically.
func (g *Guard) Strict() bool {
	_, ok := g.store.(ConditionalIncrementer)
	return g.strict && ok
}

// Check decides on an already fetched record. It does not touch the store.
func (g *Guard) Check(record *UsageRecord, feature Feature) Decision {
	return decisionFrom(g.resolver.SnapshotFor(record, feature))
}

// GetUsage returns the snapshot of feature for record.
func (g *Guard) GetUsage(record *UsageRecord, feature Feature) FeatureUsageSnapshot {
	return g.resolver.SnapshotFor(record, feature)
}

// GetUsageSummary returns the summary of every feature for record.
func (g *Guard) GetUsageSummary(record *UsageRecord) UsageSummary {
	return g.resolver.SummaryFor(record)
}

// LoadRecord fetches userID's record. A missing record is returned as a fresh
// free-plan record, never as an error.
func (g *Guard) LoadRecord(ctx context.Context, userID string) (*UsageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()

	record, err := g.store.FetchUsageRecord(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return NewUsageRecord(userID, time.Time{}), nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CheckFeature loads userID's record and decides on feature. Read failures
// never surface as errors; they are answered by the fail-open policy and
// flagged as Degraded.
func (g *Guard) CheckFeature(ctx context.Context, userID string, feature Feature) Decision {
	ctx, span := g.tracer.Start(ctx, "entitlements.CheckFeature",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("entitlements.feature", string(feature)),
		),
	)
	defer span.End()

	record, err := g.LoadRecord(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "usage record read failed")
		return g.degraded(ctx, userID, feature, err)
	}

	d := g.Check(record, feature)
	span.SetAttributes(
		attribute.String("entitlements.status", string(d.Status)),
		attribute.Bool("entitlements.allowed", d.Allowed),
	)
	return d
}

func (g *Guard) degraded(
	ctx context.Context,
	userID string,
	feature Feature,
	err error,
) Decision {
	g.logger.WarnContext(ctx, "usage record unavailable, applying policy",
		"user_id", userID,
		"feature", string(feature),
		"fail_open", g.failOpen,
		"error", err,
	)

	if g.failOpen {
		return Decision{
			Feature:  feature,
			Allowed:  true,
			Status:   StatusOK,
			Degraded: true,
		}
	}
	return Decision{
		Feature:  feature,
		Allowed:  false,
		Status:   StatusBlocked,
		Degraded: true,
	}
}

// TrackUsage records one use of feature. Persistence failures are logged and
// swallowed: the action being metered has already happened.
func (g *Guard) TrackUsage(ctx context.Context, userID string, feature Feature) {
	ctx, span := g.tracer.Start(ctx, "entitlements.TrackUsage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("entitlements.feature", string(feature)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()

	if err := g.store.IncrementUsage(ctx, userID, feature); err != nil {
		span.RecordError(err)
		g.logger.ErrorContext(ctx, "failed to track usage",
			"user_id", userID,
			"feature", string(feature),
			"error", err,
		)
	}
}

// TrackUsageAsync runs TrackUsage in the background, detached from ctx
// cancellation so a finished request does not abort the write. Wait blocks
// until all pending writes are done.
func (g *Guard) TrackUsageAsync(ctx context.Context, userID string, feature Feature) {
	ctx = context.WithoutCancel(ctx)

	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		g.TrackUsage(ctx, userID, feature)
	}()
}

func (g *Guard) Wait() {
	g.pending.Wait()
}

// Consume checks feature and records one use in a single call. In strict
// mode with a ConditionalIncrementer store the increment only happens while
// the counter is below the effective limit; otherwise this is CheckFeature
// followed by TrackUsage with the usual race at the boundary.
func (g *Guard) Consume(ctx context.Context, userID string, feature Feature) Decision {
	ctx, span := g.tracer.Start(ctx, "entitlements.Consume",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("entitlements.feature", string(feature)),
			attribute.Bool("entitlements.strict", g.Strict()),
		),
	)
	defer span.End()

	record, err := g.LoadRecord(ctx, userID)
	if err != nil {
		span.RecordError(err)
		d := g.degraded(ctx, userID, feature, err)
		if d.Allowed {
			g.TrackUsage(ctx, userID, feature)
		}
		return d
	}

	snap := g.resolver.SnapshotFor(record, feature)
	if snap.Status == StatusBlocked {
		return decisionFrom(snap)
	}

	if g.Strict() {
		return g.consumeAtomic(ctx, userID, snap)
	}

	g.TrackUsage(ctx, userID, feature)
	return afterUse(snap)
}

func (g *Guard) consumeAtomic(
	ctx context.Context,
	userID string,
	snap FeatureUsageSnapshot,
) Decision {
	incr := g.store.(ConditionalIncrementer)

	ctx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()

	ok, err := incr.IncrementIfBelow(ctx, userID, snap.Feature, snap.EffectiveLimit)
	if err != nil {
		return g.degraded(ctx, userID, snap.Feature, err)
	}
	if !ok {
		return Decision{
			Feature:   snap.Feature,
			Allowed:   false,
			Status:    StatusBlocked,
			Remaining: 0,
		}
	}
	return afterUse(snap)
}

// FlagDecision answers whether a binary capability is available.
type FlagDecision struct {
	Flag     Flag   `json:"flag"`
	Allowed  bool   `json:"allowed"`
	Plan     PlanID `json:"plan"`
	Degraded bool   `json:"degraded,omitempty"`
}

// CheckFlag reports whether flag is enabled on userID's effective plan.
// Read failures follow the same fail-open policy as CheckFeature.
func (g *Guard) CheckFlag(ctx context.Context, userID string, flag Flag) FlagDecision {
	ctx, span := g.tracer.Start(ctx, "entitlements.CheckFlag",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("entitlements.flag", string(flag)),
		),
	)
	defer span.End()

	record, err := g.LoadRecord(ctx, userID)
	if err != nil {
		span.RecordError(err)
		g.logger.WarnContext(ctx, "usage record unavailable, applying policy",
			"user_id", userID,
			"flag", string(flag),
			"fail_open", g.failOpen,
			"error", err,
		)
		return FlagDecision{Flag: flag, Allowed: g.failOpen, Degraded: true}
	}

	plan := g.resolver.EffectivePlan(record)
	return FlagDecision{
		Flag:    flag,
		Allowed: g.resolver.Catalog().HasFeature(plan, flag),
		Plan:    plan,
	}
}

// afterUse is the decision as seen after one more use was recorded.
func afterUse(snap FeatureUsageSnapshot) Decision {
	used := snap.Used + 1
	return Decision{
		Feature:   snap.Feature,
		Allowed:   true,
		Status:    Classify(used, snap.EffectiveLimit),
		Remaining: max(snap.EffectiveLimit-used, 0),
	}
}
