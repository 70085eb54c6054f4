package tenants

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/microgem/storefront-backend/pkg/db/models"
	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
)

// Handle identifies a resolved tenant and carries its database connection.
// It is a plain value scoped to one operation.
type Handle struct {
	Domain string
	SiteID int64
	DBName string
	DB     *gorm.DB
}

type siteFinder interface {
	FindByDomain(ctx context.Context, domain string) (*models.Site, error)
}

// Resolver maps a request domain to its tenant database.
type Resolver interface {
	Resolve(ctx context.Context, domain string) (*Handle, error)
}

type resolver struct {
	sites     siteFinder
	connector Connector
}

// NewResolver builds a resolver backed by the site directory and a connector.
func NewResolver(sites siteFinder, connector Connector) (Resolver, error) {
	if sites == nil {
		return nil, fmt.Errorf("site directory required")
	}
	if connector == nil {
		return nil, fmt.Errorf("tenant connector required")
	}
	return &resolver{sites: sites, connector: connector}, nil
}

// NormalizeDomain lowercases the domain and strips a leading "www.".
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimSuffix(d, ".")
	return strings.TrimPrefix(d, "www.")
}

func (r *resolver) Resolve(ctx context.Context, domain string) (*Handle, error) {
	normalized := NormalizeDomain(domain)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "domain not found")
	}

	site, err := r.sites.FindByDomain(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.WrapInfra(pkgerrors.CodeCatalogUnavailable, err, "lookup site")
	}
	if site == nil {
		return nil, pkgerrors.New(pkgerrors.CodeTenantNotFound, "site not found").
			WithDetails(map[string]any{"domain": normalized})
	}

	conn, err := r.connector.Open(ctx, site.DBName)
	if err != nil {
		return nil, pkgerrors.WrapInfra(pkgerrors.CodeCatalogUnavailable, err, "open tenant database")
	}

	return &Handle{
		Domain: normalized,
		SiteID: site.ID,
		DBName: site.DBName,
		DB:     conn,
	}, nil
}
