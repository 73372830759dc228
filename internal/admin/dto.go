// AngelaMos | 2026
// dto.go

package admin

import (
	"time"

	"github.com/viralforge/forge/internal/entitlements"
	"github.com/viralforge/forge/internal/usage"
)

type SetPlanRequest struct {
	Plan string `json:"plan" validate:"required,max=64"`
}

type GrantBonusRequest struct {
	Feature string `json:"feature" validate:"required,max=64"`
	Amount  int64  `json:"amount"  validate:"required,min=-1000000,max=1000000"`
}

// SetCompRequest sets an absolute end, a duration in days from now, or, with
// neither, clears the comp.
type SetCompRequest struct {
	Until *time.Time `json:"until,omitempty"`
	Days  int        `json:"days,omitempty"  validate:"omitempty,min=1,max=366"`
}

type ResetUsageRequest struct {
	NextResetAt *time.Time `json:"next_reset_at,omitempty"`
}

type SystemStatsResponse struct {
	Database     DatabaseStatus     `json:"database"`
	Redis        RedisStatus        `json:"redis"`
	Runtime      RuntimeStats       `json:"runtime"`
	Entitlements EntitlementsStatus `json:"entitlements"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type EntitlementsStatus struct {
	Store         string              `json:"store"`
	Cached        bool                `json:"cached"`
	Strict        bool                `json:"strict_metering"`
	CatalogSource string              `json:"catalog_source"`
	TopTier       entitlements.PlanID `json:"top_tier"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}

type CatalogResponse struct {
	usage.PlanListResponse
	Source string `json:"source"`
	YAML   string `json:"yaml"`
}

// UserUsageResponse is the record as stored plus its derived summary.
type UserUsageResponse struct {
	Record  *entitlements.UsageRecord `json:"record"`
	Summary entitlements.UsageSummary `json:"summary"`
}
