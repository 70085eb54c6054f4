package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware for storefront origins. Every tenant domain is a
// legitimate origin, so with no explicit list any origin is reflected back.
func CORS(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", CartTokenHeader, "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{CartTokenHeader, "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(origins) > 0 {
		opts.AllowedOrigins = origins
	} else {
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool { return origin != "" }
	}
	return cors.New(opts).Handler
}
