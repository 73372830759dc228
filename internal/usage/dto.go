// AngelaMos | 2026
// dto.go

package usage

import (
	"time"

	"github.com/viralforge/forge/internal/entitlements"
)

type ComparePlansQuery struct {
	From string `validate:"required,max=64"`
	To   string `validate:"required,max=64"`
}

type PlanResponse struct {
	ID     entitlements.PlanID            `json:"id"`
	Name   string                         `json:"name"`
	Rank   int                            `json:"rank"`
	Limits map[entitlements.Feature]int64 `json:"limits"`
	Flags  map[entitlements.Flag]bool     `json:"flags"`
}

type PlanListResponse struct {
	Plans   []PlanResponse      `json:"plans"`
	TopTier entitlements.PlanID `json:"top_tier"`
}

func ToPlanListResponse(c *entitlements.Catalog) PlanListResponse {
	plans := c.Plans()
	out := PlanListResponse{
		Plans:   make([]PlanResponse, 0, len(plans)),
		TopTier: c.TopTier(),
	}
	for i, p := range plans {
		out.Plans = append(out.Plans, PlanResponse{
			ID:     p.ID,
			Name:   p.Name,
			Rank:   i,
			Limits: p.Limits,
			Flags:  p.Flags,
		})
	}
	return out
}

type TrackResponse struct {
	Feature entitlements.Feature `json:"feature"`
	Queued  bool                 `json:"queued"`
}

// GenerationResponse is returned by the gated demo action.
type GenerationResponse struct {
	ID        string               `json:"id"`
	Feature   entitlements.Feature `json:"feature"`
	CreatedAt time.Time            `json:"created_at"`
}
