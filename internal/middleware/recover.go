package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/dukerupert/skuld/internal/domain"
)

// Recover catches panics in handlers, logs the stack, and answers with the
// API's JSON error envelope instead of tearing down the connection. The body
// is written inline because the api package sits above this one in the
// middleware chain.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger := GetLogger(r.Context())
				logger.Error("panic recovered",
					"panic", rec,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				body := map[string]any{
					"error": map[string]string{
						"code":    domain.EINTERNAL,
						"message": "An internal error occurred. Please try again later.",
					},
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(body)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
