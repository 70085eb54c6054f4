package tenants

import (
	"context"
	"errors"
	"strings"

	"github.com/microgem/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository reads the site directory.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a directory repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByDomain returns the site registered for domain, or nil when there is none.
func (r *Repository) FindByDomain(ctx context.Context, domain string) (*models.Site, error) {
	var site models.Site
	err := r.db.WithContext(ctx).
		Where("LOWER(domain_name) = ?", strings.ToLower(domain)).
		Take(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// List returns every registered site ordered by id.
func (r *Repository) List(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}
