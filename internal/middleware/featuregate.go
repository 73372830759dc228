// AngelaMos | 2026
// featuregate.go

package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
)

// FeatureFunc picks the metered feature a request consumes.
type FeatureFunc func(*http.Request) (entitlements.Feature, error)

func FixedFeature(f entitlements.Feature) FeatureFunc {
	return func(*http.Request) (entitlements.Feature, error) {
		return f, nil
	}
}

// FeatureFromURLParam reads the feature from a chi route parameter.
func FeatureFromURLParam(param string) FeatureFunc {
	return func(r *http.Request) (entitlements.Feature, error) {
		return entitlements.ParseFeature(chi.URLParam(r, param))
	}
}

// RequireFeature gates the wrapped handler on the caller's quota for a
// metered feature and records one use.
//
// With strict metering the use is reserved atomically before the handler
// runs and is kept even if the handler fails. Otherwise the quota is checked
// up front and the use is recorded in the background only after a 2xx
// response.
func RequireFeature(
	guard *entitlements.Guard,
	featureOf FeatureFunc,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			feature, err := featureOf(r)
			if err != nil {
				writeFeatureError(w, err)
				return
			}

			if guard.Strict() {
				d := guard.Consume(r.Context(), userID, feature)
				setUsageHeaders(w, d)
				if !d.Allowed {
					writeUpgradeRequired(w, d)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			d := guard.CheckFeature(r.Context(), userID, feature)
			setUsageHeaders(w, d)
			if !d.Allowed {
				writeUpgradeRequired(w, d)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= 200 && status < 300 {
				guard.TrackUsageAsync(r.Context(), userID, feature)
			}
		})
	}
}

// RequireFlag gates the wrapped handler on a binary plan capability.
func RequireFlag(
	guard *entitlements.Guard,
	flag entitlements.Flag,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			d := guard.CheckFlag(r.Context(), userID, flag)
			if !d.Allowed {
				core.JSONError(w, core.UpgradeRequiredError(
					string(flag)+" is not included in your plan",
					d,
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setUsageHeaders(w http.ResponseWriter, d entitlements.Decision) {
	if d.Degraded {
		return
	}
	w.Header().Set("X-Usage-Remaining", strconv.FormatInt(d.Remaining, 10))
	w.Header().Set("X-Usage-Status", string(d.Status))
}

func writeUpgradeRequired(w http.ResponseWriter, d entitlements.Decision) {
	core.JSONError(w, core.UpgradeRequiredError(
		string(d.Feature)+" limit reached for the current period",
		d,
	))
}

func writeFeatureError(w http.ResponseWriter, err error) {
	if errors.Is(err, entitlements.ErrUnknownFeature) {
		core.JSONError(w, core.NotFoundError("feature"))
		return
	}
	core.JSONError(w, core.BadRequestError(err.Error()))
}
