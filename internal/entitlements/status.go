// AngelaMos | 2026
// status.go

package entitlements

// Status is the severity of a usage ratio.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusBlocked  Status = "blocked"
)

// Thresholds in tenths of the effective limit. Integer arithmetic keeps the
// boundaries exact: 9 of 10 is critical, never warning.
const (
	warningTenths  = 7
	criticalTenths = 9
	blockedTenths  = 10
)

// Severity orders statuses from ok (0) to blocked (3).
func (s Status) Severity() int {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return 3
	}
}

// Classify maps used against effectiveLimit onto a Status. A zero limit means
// the feature is not entitled and is always blocked. Negative inputs are
// treated as 0.
func Classify(used, effectiveLimit int64) Status {
	used = max(used, 0)
	effectiveLimit = max(effectiveLimit, 0)

	if effectiveLimit == 0 {
		return StatusBlocked
	}

	scaled := used * 10
	switch {
	case scaled >= effectiveLimit*blockedTenths:
		return StatusBlocked
	case scaled >= effectiveLimit*criticalTenths:
		return StatusCritical
	case scaled >= effectiveLimit*warningTenths:
		return StatusWarning
	default:
		return StatusOK
	}
}
