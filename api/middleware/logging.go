package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/microgem/storefront-backend/pkg/logger"
)

const (
	outcomeOK          = "ok"
	outcomeClientError = "client_error"
	outcomeServerError = "server_error"
)

// requestSummary collects what inner middleware learns about a request so the
// access log line can report it after the handler returns.
type requestSummary struct {
	tenant string
	token  string
}

// Logging writes one access line per request with the matched route, the
// tenant, the cart token digest and the outcome. Server errors log at warn.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}
			summary := &requestSummary{}
			ctx := withRequestSummary(r.Context(), summary)
			ctx = logg.WithFields(ctx, map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.statusCode()
			fields := map[string]any{
				"status":      status,
				"outcome":     outcomeFor(status),
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
				fields["route"] = rctx.RoutePattern()
			}
			if summary.tenant != "" {
				fields[logger.FieldTenantDomain] = summary.tenant
			}
			if summary.token != "" {
				fields[logger.FieldCartTokenHash] = logger.TokenDigest(summary.token)
			}
			ctx = logg.WithFields(ctx, fields)

			if status >= http.StatusInternalServerError {
				logg.Warn(ctx, "request.complete")
				return
			}
			logg.Info(ctx, "request.complete")
		})
	}
}

func outcomeFor(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return outcomeServerError
	case status >= http.StatusBadRequest:
		return outcomeClientError
	}
	return outcomeOK
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
