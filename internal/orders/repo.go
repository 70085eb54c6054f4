package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/microgem/storefront-backend/pkg/db/models"
)

// Repository persists orders inside a caller-owned transaction.
type Repository struct{}

// NewRepository builds an order repository.
func NewRepository() *Repository {
	return &Repository{}
}

// OrderNumberTaken reports whether orderNo is already used in this tenant.
func (r *Repository) OrderNumberTaken(ctx context.Context, tx *gorm.DB, orderNo string) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&models.Order{}).Where("order_no = ?", orderNo).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts the order and its product lines.
func (r *Repository) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

// FindByOrderNo loads an order with its lines.
func (r *Repository) FindByOrderNo(ctx context.Context, conn *gorm.DB, orderNo string) (*models.Order, error) {
	var order models.Order
	err := conn.WithContext(ctx).
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("order_no = ?", orderNo).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
