package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/microgem/storefront-backend/internal/tenants"
	"github.com/microgem/storefront-backend/pkg/db/models"
	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
)

// Catalog reads live product data from a tenant database.
type Catalog interface {
	FindByID(ctx context.Context, tenant *tenants.Handle, id int64) (*models.Product, error)
	FindByIDs(ctx context.Context, tenant *tenants.Handle, ids []int64) (map[int64]*models.Product, error)
	DecrementInventory(ctx context.Context, tx *gorm.DB, id int64, qty int) (bool, error)
}

// Repository is the GORM-backed catalog gateway.
type Repository struct{}

// NewRepository builds a catalog gateway. The tenant connection is supplied per call.
func NewRepository() *Repository {
	return &Repository{}
}

// FindByID returns the product or nil when it does not exist.
func (r *Repository) FindByID(ctx context.Context, tenant *tenants.Handle, id int64) (*models.Product, error) {
	conn, err := tenantConn(tenant)
	if err != nil {
		return nil, err
	}
	var product models.Product
	err = conn.WithContext(ctx).Take(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.WrapInfra(pkgerrors.CodeCatalogUnavailable, err, "load product")
	}
	return &product, nil
}

// FindByIDs loads every requested product in one query. Missing ids are absent
// from the result.
func (r *Repository) FindByIDs(ctx context.Context, tenant *tenants.Handle, ids []int64) (map[int64]*models.Product, error) {
	out := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	conn, err := tenantConn(tenant)
	if err != nil {
		return nil, err
	}
	var rows []models.Product
	if err := conn.WithContext(ctx).Where("id IN ?", uniqueIDs(ids)).Find(&rows).Error; err != nil {
		return nil, pkgerrors.WrapInfra(pkgerrors.CodeCatalogUnavailable, err, "load products")
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

// DecrementInventory subtracts qty only while enough stock remains. It reports
// false when the row was missing or short on stock.
func (r *Repository) DecrementInventory(ctx context.Context, tx *gorm.DB, id int64, qty int) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction required")
	}
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND inventory >= ?", id, qty).
		Update("inventory", gorm.Expr("inventory - ?", qty))
	if res.Error != nil {
		return false, pkgerrors.WrapInfra(pkgerrors.CodeCatalogUnavailable, res.Error, "decrement inventory")
	}
	return res.RowsAffected == 1, nil
}

// Thumbnail returns the first entry of the product's JSON image list.
func Thumbnail(p *models.Product) string {
	if p == nil || p.Images == nil || *p.Images == "" {
		return ""
	}
	var images []string
	if err := json.Unmarshal([]byte(*p.Images), &images); err != nil || len(images) == 0 {
		return ""
	}
	return images[0]
}

func tenantConn(tenant *tenants.Handle) (*gorm.DB, error) {
	if tenant == nil || tenant.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tenant connection missing")
	}
	return tenant.DB, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
