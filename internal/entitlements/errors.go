// AngelaMos | 2026
// errors.go

package entitlements

import "errors"

var (
	ErrInvalidCatalog = errors.New("entitlements: invalid plan catalog")
	ErrUnknownFeature = errors.New("entitlements: unknown feature")
	ErrUnknownPlan    = errors.New("entitlements: unknown plan")

	// ErrRecordNotFound is returned by stores when a user has no usage
	// record yet. The guard treats it as a zero record.
	ErrRecordNotFound = errors.New("entitlements: usage record not found")
)
