package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/microgem/storefront-backend/api/responses"
	"github.com/microgem/storefront-backend/internal/tenants"
	"github.com/microgem/storefront-backend/pkg/config"
	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
	"github.com/microgem/storefront-backend/pkg/logger"
)

const (
	DomainSourceOrigin        = "origin"
	DomainSourceForwardedHost = "forwarded_host"
	DomainSourceHost          = "host"
)

type domainSource func(r *http.Request) string

var domainSources = map[string]domainSource{
	DomainSourceOrigin: func(r *http.Request) string {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" || origin == "null" {
			return ""
		}
		u, err := url.Parse(origin)
		if err != nil {
			return ""
		}
		return u.Hostname()
	},
	DomainSourceForwardedHost: func(r *http.Request) string {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Host"), ",")
		return stripPort(strings.TrimSpace(first))
	},
	DomainSourceHost: func(r *http.Request) string {
		return stripPort(r.Host)
	},
}

// TenantDomain picks the tenant domain from the configured request sources,
// in order, and rejects requests that carry none.
func TenantDomain(cfg config.TenantConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	sources := make([]domainSource, 0, len(cfg.DomainSources))
	for _, name := range cfg.DomainSources {
		if src, ok := domainSources[strings.ToLower(strings.TrimSpace(name))]; ok {
			sources = append(sources, src)
		}
	}
	aliases := make(map[string]string, len(cfg.DevAliases))
	for from, to := range cfg.DevAliases {
		aliases[tenants.NormalizeDomain(from)] = tenants.NormalizeDomain(to)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			domain := ""
			for _, src := range sources {
				if domain = tenants.NormalizeDomain(src(r)); domain != "" {
					break
				}
			}
			if alias, ok := aliases[domain]; ok {
				domain = alias
			}
			if domain == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "domain not found"))
				return
			}

			ctx := WithTenantDomain(r.Context(), domain)
			if logg != nil {
				ctx = logg.WithTenant(ctx, domain)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func stripPort(hostport string) string {
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}
