package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/microgem/storefront-backend/api/responses"
	"github.com/microgem/storefront-backend/pkg/logger"
)

const maxRequestIDLen = 128

// RequestID echoes a caller-supplied X-Request-Id when it is printable and
// short, and otherwise mints one. The id is set on the response before the
// handler runs so error envelopes can include it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(responses.RequestIDHeader))
			if !usableRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(responses.RequestIDHeader, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
