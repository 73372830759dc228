// AngelaMos | 2026
// logger.go

package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/viralforge/forge/internal/core"
)

// Logger writes one access log line per request. 5xx responses log at error
// level, 4xx at warn.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				level := slog.LevelInfo
				switch {
				case status >= http.StatusInternalServerError:
					level = slog.LevelError
				case status >= http.StatusBadRequest:
					level = slog.LevelWarn
				}

				attrs := []slog.Attr{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					core.RequestID(GetRequestID(r.Context())),
					core.UserID(GetUserID(r.Context())),
				}
				if traceID := core.TraceIDFromContext(r.Context()); traceID != "" {
					attrs = append(attrs, slog.String("trace_id", traceID))
				}

				logger.LogAttrs(r.Context(), level, "http request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Recoverer turns a panic into a 500 envelope and logs the stack.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "panic recovered",
					"panic", rec,
					core.RequestID(GetRequestID(r.Context())),
				)
				core.InternalServerError(w, nil)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
