// AngelaMos | 2026
// catalog.go

package entitlements

import (
	"errors"
	"fmt"
)

// Catalog is the immutable plan table. Plans are kept in tier order, lowest
// first; the lowest tier must be free and is the fallback for unknown ids.
type Catalog struct {
	order []PlanID
	plans map[PlanID]PlanDefinition
}

// NewCatalog validates plans and builds a catalog in the given tier order.
//
// Every plan must define a limit and a flag value for every known feature
// and flag, limits must be non-negative, and limits may not decrease when
// moving up a tier.
func NewCatalog(plans ...PlanDefinition) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: no plans defined", ErrInvalidCatalog)
	}

	if plans[0].ID != PlanFree {
		return nil, fmt.Errorf(
			"%w: lowest tier must be %q, got %q",
			ErrInvalidCatalog,
			PlanFree,
			plans[0].ID,
		)
	}

	c := &Catalog{
		order: make([]PlanID, 0, len(plans)),
		plans: make(map[PlanID]PlanDefinition, len(plans)),
	}

	var errs []error
	for _, p := range plans {
		if p.ID == "" {
			errs = append(errs, errors.New("plan with empty id"))
			continue
		}
		if _, dup := c.plans[p.ID]; dup {
			errs = append(errs, fmt.Errorf("plan %q defined twice", p.ID))
			continue
		}
		errs = append(errs, validatePlan(p)...)

		c.order = append(c.order, p.ID)
		c.plans[p.ID] = p.clone()
	}

	errs = append(errs, c.validateTierOrder()...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}

	return c, nil
}

func validatePlan(p PlanDefinition) []error {
	var errs []error

	for _, f := range allFeatures {
		limit, ok := p.Limits[f]
		if !ok {
			errs = append(errs, fmt.Errorf("plan %q: missing limit for %q", p.ID, f))
			continue
		}
		if limit < 0 {
			errs = append(errs, fmt.Errorf("plan %q: negative limit for %q", p.ID, f))
		}
	}
	for f := range p.Limits {
		if !f.Valid() {
			errs = append(errs, fmt.Errorf("plan %q: unknown feature %q", p.ID, f))
		}
	}

	for _, fl := range allFlags {
		if _, ok := p.Flags[fl]; !ok {
			errs = append(errs, fmt.Errorf("plan %q: missing flag %q", p.ID, fl))
		}
	}
	for fl := range p.Flags {
		if !fl.Valid() {
			errs = append(errs, fmt.Errorf("plan %q: unknown flag %q", p.ID, fl))
		}
	}

	return errs
}

func (c *Catalog) validateTierOrder() []error {
	var errs []error
	for i := 1; i < len(c.order); i++ {
		lower := c.plans[c.order[i-1]]
		upper := c.plans[c.order[i]]
		for _, f := range allFeatures {
			if upper.Limits[f] < lower.Limits[f] {
				errs = append(errs, fmt.Errorf(
					"plan %q: limit for %q (%d) is below %q (%d)",
					upper.ID, f, upper.Limits[f], lower.ID, lower.Limits[f],
				))
			}
		}
	}
	return errs
}

// GetPlan returns the definition for id. Unknown or empty ids resolve to the
// free plan; this never fails.
func (c *Catalog) GetPlan(id PlanID) PlanDefinition {
	if p, ok := c.plans[id]; ok {
		return p.clone()
	}
	return c.plans[PlanFree].clone()
}

// Lookup returns the definition for id and whether it is part of the catalog.
func (c *Catalog) Lookup(id PlanID) (PlanDefinition, bool) {
	p, ok := c.plans[id]
	if !ok {
		return PlanDefinition{}, false
	}
	return p.clone(), true
}

// Resolve maps id onto a catalog plan, falling back to free.
func (c *Catalog) Resolve(id PlanID) PlanID {
	if _, ok := c.plans[id]; ok {
		return id
	}
	return PlanFree
}

// LimitFor returns the base quota of feature on plan id. Unknown plans use
// the free plan; unknown features have a quota of 0.
func (c *Catalog) LimitFor(id PlanID, feature Feature) int64 {
	return c.plans[c.Resolve(id)].Limits[feature]
}

// HasFeature reports whether flag is enabled on plan id.
func (c *Catalog) HasFeature(id PlanID, flag Flag) bool {
	return c.plans[c.Resolve(id)].Flags[flag]
}

// TopTier is the highest plan, granted while a user is comped.
func (c *Catalog) TopTier() PlanID {
	return c.order[len(c.order)-1]
}

// Plans returns copies of all plans in tier order.
func (c *Catalog) Plans() []PlanDefinition {
	out := make([]PlanDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id].clone())
	}
	return out
}

// Rank is the zero-based tier position of id, or -1 for unknown plans.
func (c *Catalog) Rank(id PlanID) int {
	for i, p := range c.order {
		if p == id {
			return i
		}
	}
	return -1
}

// Compare describes the difference between two plans. Unknown ids resolve to
// free like every other lookup.
func (c *Catalog) Compare(from, to PlanID) PlanComparison {
	current := c.plans[c.Resolve(from)]
	target := c.plans[c.Resolve(to)]

	cmp := PlanComparison{
		From:            current.ID,
		To:              target.ID,
		GainedFlags:     []Flag{},
		LostFlags:       []Flag{},
		IncreasedLimits: map[Feature]LimitChange{},
		DecreasedLimits: map[Feature]LimitChange{},
	}

	for _, fl := range allFlags {
		switch {
		case target.Flags[fl] && !current.Flags[fl]:
			cmp.GainedFlags = append(cmp.GainedFlags, fl)
		case current.Flags[fl] && !target.Flags[fl]:
			cmp.LostFlags = append(cmp.LostFlags, fl)
		}
	}

	for _, f := range allFeatures {
		change := LimitChange{From: current.Limits[f], To: target.Limits[f]}
		switch {
		case change.To > change.From:
			cmp.IncreasedLimits[f] = change
		case change.To < change.From:
			cmp.DecreasedLimits[f] = change
		}
	}

	return cmp
}
