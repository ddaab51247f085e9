package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the response header every request carries (spec.md §6).
const RequestIDHeader = "X-Request-Id"

// RequestID assigns a uuid per request, honoring an inbound X-Request-Id
// so a caller's own trace id propagates end to end, and places it on both
// the response header and the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
