package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS wraps github.com/rs/cors per spec.md §6 ("Access-Control-* for
// CORS"), configured from the gateway's allowed-origins list.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler
}
