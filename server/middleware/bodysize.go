package middleware

import (
	"net/http"

	"github.com/Anyuluo996/BotShepherd/util"
)

const defaultMaxBodySize = 10 * 1024 * 1024 // 10MB

// BodySizeLimit caps request bodies at the given size string (e.g. "10MB").
// Connection config updates carry the largest admin bodies; reads past the cap
// fail with http.MaxBytesError, which JSON binding surfaces as a 400.
func BodySizeLimit(maxSize string) Middleware {
	size := util.ParseSize(maxSize, defaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}
