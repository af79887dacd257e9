// file: internal/gateway/middleware.go

package gateway

import (
	"net/http"

	"webhook-gateway/internal/logger"
)

// RecoveryMiddleware turns a panic in a handler into a 500 and a log entry
func RecoveryMiddleware(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Error("panic recovered in HTTP handler",
					"panic", p,
					"path", r.URL.Path,
					"method", r.Method)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
