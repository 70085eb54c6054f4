package middleware

import "context"

type contextKey string

const (
	ctxTenantDomain contextKey = "tenant_domain"
	ctxCartToken    contextKey = "cart_token"
	ctxSummary      contextKey = "request_summary"
)

func withRequestSummary(ctx context.Context, s *requestSummary) context.Context {
	return context.WithValue(ctx, ctxSummary, s)
}

func summaryFrom(ctx context.Context) *requestSummary {
	s, _ := ctx.Value(ctxSummary).(*requestSummary)
	return s
}

// TenantDomainFromContext returns the request's tenant domain, if resolved.
func TenantDomainFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxTenantDomain).(string); ok {
		return v
	}
	return ""
}

// CartTokenFromContext returns the cart token selected for the request.
func CartTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCartToken).(string); ok {
		return v
	}
	return ""
}

// WithTenantDomain injects the tenant domain into the context.
func WithTenantDomain(ctx context.Context, domain string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if s := summaryFrom(ctx); s != nil {
		s.tenant = domain
	}
	return context.WithValue(ctx, ctxTenantDomain, domain)
}

// WithCartToken injects the cart token into the context.
func WithCartToken(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if s := summaryFrom(ctx); s != nil {
		s.token = token
	}
	return context.WithValue(ctx, ctxCartToken, token)
}
