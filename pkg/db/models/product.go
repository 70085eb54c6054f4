package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog row in a tenant database. Images holds a JSON array
// of image URLs.
type Product struct {
	ID        int64           `gorm:"column:id;primaryKey"`
	SKU       string          `gorm:"column:sku;not null"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Inventory int             `gorm:"column:inventory;not null;default:0"`
	Images    *string         `gorm:"column:images"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
