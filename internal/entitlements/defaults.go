// AngelaMos | 2026
// defaults.go

package entitlements

// DefaultPlans is the built-in tier table used when no catalog file is
// configured. Callers get fresh maps on every call.
func DefaultPlans() []PlanDefinition {
	return []PlanDefinition{
		{
			ID:   PlanFree,
			Name: "Free",
			Limits: map[Feature]int64{
				FeatureHooks:     10,
				FeatureABTest:    2,
				FeaturePlanner:   1,
				FeatureAnalyses:  3,
				FeatureBrandKits: 0,
			},
			Flags: map[Flag]bool{
				FlagPersonaLearning: false,
				FlagPrioritySupport: false,
				FlagAPIAccess:       false,
				FlagWhiteLabel:      false,
				FlagTeamWorkspace:   false,
			},
		},
		{
			ID:   PlanCreatorPro,
			Name: "Creator Pro",
			Limits: map[Feature]int64{
				FeatureHooks:     200,
				FeatureABTest:    30,
				FeaturePlanner:   10,
				FeatureAnalyses:  50,
				FeatureBrandKits: 1,
			},
			Flags: map[Flag]bool{
				FlagPersonaLearning: true,
				FlagPrioritySupport: false,
				FlagAPIAccess:       false,
				FlagWhiteLabel:      false,
				FlagTeamWorkspace:   false,
			},
		},
		{
			ID:   PlanBusinessPro,
			Name: "Business Pro",
			Limits: map[Feature]int64{
				FeatureHooks:     1000,
				FeatureABTest:    150,
				FeaturePlanner:   50,
				FeatureAnalyses:  250,
				FeatureBrandKits: 5,
			},
			Flags: map[Flag]bool{
				FlagPersonaLearning: true,
				FlagPrioritySupport: true,
				FlagAPIAccess:       true,
				FlagWhiteLabel:      true,
				FlagTeamWorkspace:   true,
			},
		},
	}
}

// DefaultCatalog builds the catalog from DefaultPlans. The built-in table is
// covered by tests, so a failure here is a programming error.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultPlans()...)
	if err != nil {
		panic(err)
	}
	return c
}
