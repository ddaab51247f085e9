package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/latticeframe/gateway/internal/envelope"
	"github.com/latticeframe/gateway/internal/ratelimit"

	"github.com/latticeframe/gateway/internal/apierr"
)

// KeyFunc derives the rate-limit bucket key for a request — typically the
// resolved tenant, falling back to the remote address for anonymous
// traffic.
type KeyFunc func(r *http.Request) string

// RateLimit enforces limiter per KeyFunc(r), attaching X-RateLimit-* headers
// and, on rejection, Retry-After plus a RATE_LIMITED error envelope per
// spec.md §6/§7. burst is surfaced as X-RateLimit-Limit.
func RateLimit(limiter *ratelimit.Limiter, burst int, keyFn KeyFunc, api envelope.APIInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Limit(keyFn(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
			if !res.Success {
				retryAfter := int(time.Until(res.Reset).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				apiErr := apierr.New(apierr.RateLimited, "too many requests").WithRetryAfter(retryAfter)
				writeError(w, api, apiErr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RemoteAddrKey is the default KeyFunc for anonymous rate-limiting: the
// tenant if resolved, else the client's remote address.
func RemoteAddrKey(r *http.Request) string {
	if tenant := TenantFrom(r.Context()); tenant != "" {
		return tenant
	}
	return r.RemoteAddr
}
