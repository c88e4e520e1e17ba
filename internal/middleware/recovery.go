package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/bryanwahyu/contract-analysis/internal/logging"
)

// Recovery turns a panic in a handler into a logged 500 JSON error.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.FromContext(r.Context(), logger).Error("panic recovered",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				WriteError(w, http.StatusInternalServerError, "", "internal server error", false)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
