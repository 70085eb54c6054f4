package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderProduct freezes one purchased line at the price charged.
type OrderProduct struct {
	ID        int64           `gorm:"column:id;primaryKey"`
	OrderID   int64           `gorm:"column:order_id;not null;index"`
	ProductID int64           `gorm:"column:product_id;not null"`
	SKU       string          `gorm:"column:sku;not null"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderProduct) TableName() string { return "order_product" }
