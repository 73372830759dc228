// AngelaMos | 2026
// plan.go

// Package entitlements evaluates plan quotas and feature flags for a user's
// usage record. Everything here is a pure computation over an injected
// Catalog except the Guard, which reads and writes through a UsageStore.
package entitlements

import (
	"maps"
)

// PlanID identifies a subscription tier.
type PlanID string

const (
	PlanFree        PlanID = "free"
	PlanCreatorPro  PlanID = "creator_pro"
	PlanBusinessPro PlanID = "business_pro"
)

// Feature is a metered capability counted per billing period.
type Feature string

const (
	FeatureHooks     Feature = "hooks"
	FeatureABTest    Feature = "abtest"
	FeaturePlanner   Feature = "planner"
	FeatureAnalyses  Feature = "analyses"
	FeatureBrandKits Feature = "brand_kits"
)

// Flag is a binary capability that is either part of a plan or not.
type Flag string

const (
	FlagPersonaLearning Flag = "persona_learning"
	FlagPrioritySupport Flag = "priority_support"
	FlagAPIAccess       Flag = "api_access"
	FlagWhiteLabel      Flag = "white_label"
	FlagTeamWorkspace   Flag = "team_workspace"
)

var allFeatures = []Feature{
	FeatureHooks,
	FeatureABTest,
	FeaturePlanner,
	FeatureAnalyses,
	FeatureBrandKits,
}

var allFlags = []Flag{
	FlagPersonaLearning,
	FlagPrioritySupport,
	FlagAPIAccess,
	FlagWhiteLabel,
	FlagTeamWorkspace,
}

// AllFeatures returns every known metered feature in display order.
func AllFeatures() []Feature {
	out := make([]Feature, len(allFeatures))
	copy(out, allFeatures)
	return out
}

// AllFlags returns every known binary flag in display order.
func AllFlags() []Flag {
	out := make([]Flag, len(allFlags))
	copy(out, allFlags)
	return out
}

func (f Feature) Valid() bool {
	for _, known := range allFeatures {
		if f == known {
			return true
		}
	}
	return false
}

func (f Flag) Valid() bool {
	for _, known := range allFlags {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFeature converts an external string into a Feature.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if !f.Valid() {
		return "", ErrUnknownFeature
	}
	return f, nil
}

// PlanDefinition is one tier of the catalog. Limits of 0 disable a feature;
// there is no unlimited sentinel, every plan is metered.
type PlanDefinition struct {
	ID     PlanID
	Name   string
	Limits map[Feature]int64
	Flags  map[Flag]bool
}

// Limit returns the quota for feature, 0 when the feature is unknown.
func (p PlanDefinition) Limit(feature Feature) int64 {
	return p.Limits[feature]
}

// Has reports whether flag is enabled on the plan.
func (p PlanDefinition) Has(flag Flag) bool {
	return p.Flags[flag]
}

func (p PlanDefinition) clone() PlanDefinition {
	return PlanDefinition{
		ID:     p.ID,
		Name:   p.Name,
		Limits: maps.Clone(p.Limits),
		Flags:  maps.Clone(p.Flags),
	}
}

// PlanComparison lists what changes when moving from one plan to another.
type PlanComparison struct {
	From            PlanID                  `json:"from"`
	To              PlanID                  `json:"to"`
	GainedFlags     []Flag                  `json:"gained_flags"`
	LostFlags       []Flag                  `json:"lost_flags"`
	IncreasedLimits map[Feature]LimitChange `json:"increased_limits"`
	DecreasedLimits map[Feature]LimitChange `json:"decreased_limits"`
}

type LimitChange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// IsDowngrade reports whether the target plan takes anything away.
func (c PlanComparison) IsDowngrade() bool {
	return len(c.LostFlags) > 0 || len(c.DecreasedLimits) > 0
}
