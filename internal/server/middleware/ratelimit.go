package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to the specified number per minute. Non-positive limits disable limiting.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return passthrough
	}
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

func passthrough(next http.Handler) http.Handler { return next }

// RateLimitByNode limits daemon callbacks per presented bearer token, falling
// back to the client IP when the header is absent. Non-positive limits
// disable limiting.
func RateLimitByNode(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return passthrough
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if token, ok := bearerToken(r); ok {
				return "node:" + token, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		}),
	)
}
