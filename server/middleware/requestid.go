package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestID returns middleware that injects a unique X-Request-Id header into
// every request and response. Incoming IDs are preserved so callers can
// correlate across services.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.New().String()
				r.Header.Set("X-Request-Id", id)
			}
			w.Header().Set("X-Request-Id", id)
			next.ServeHTTP(w, r)
		})
	}
}
