package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/envelope"
)

// Recover converts a panic into an INTERNAL_ERROR envelope rather than
// letting net/http close the connection, per spec.md §7 ("a global error
// handler wraps uncaught exceptions... no stack trace exposed"). The panic
// value is logged, never serialized to the client.
func Recover(logger *zap.Logger, api envelope.APIInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("requestId", RequestIDFrom(r.Context())),
					)
					apiErr := apierr.New(apierr.InternalError, "an internal error occurred")
					writeError(w, api, apiErr)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// writeError renders apiErr as the standard error envelope, always
// attaching links.home/links.status per spec.md §7.
func writeError(w http.ResponseWriter, api envelope.APIInfo, apiErr *apierr.Error) {
	env := envelope.Build(envelope.Options{
		API:   api,
		Links: map[string]any{"home": "/", "status": "/qa"},
		Error: apiErr,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(env)
}
