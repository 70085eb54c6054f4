package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/microgem/storefront-backend/pkg/enums"
)

// Order is a placed guest order in a tenant database.
type Order struct {
	ID             int64             `gorm:"column:id;primaryKey"`
	OrderNo        string            `gorm:"column:order_no;not null;uniqueIndex"`
	Name           string            `gorm:"column:name;not null"`
	Email          string            `gorm:"column:email;not null"`
	Phone          string            `gorm:"column:phone;not null;default:''"`
	Note           string            `gorm:"column:note;not null;default:''"`
	Address        string            `gorm:"column:address;not null"`
	DiscountCoupon string            `gorm:"column:discount_coupon;not null;default:''"`
	Currency       string            `gorm:"column:currency;not null"`
	Discount       decimal.Decimal   `gorm:"column:discount;type:numeric(12,2);not null"`
	Subtotal       decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Shipping       decimal.Decimal   `gorm:"column:shipping;type:numeric(12,2);not null"`
	Total          decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Method         string            `gorm:"column:method;not null"`
	Status         enums.OrderStatus `gorm:"column:status;not null;default:0"`
	Products       []OrderProduct    `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
