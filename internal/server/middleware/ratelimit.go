package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits requests per client IP with a sliding window. The limit
// mostly matters on the gated endpoints, where each request costs a key
// lookup and possibly a bcrypt comparison.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return GetClientIP(r), nil
		}),
	)
}
