package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/microgem/storefront-backend/api/validators"
	ordersvc "github.com/microgem/storefront-backend/internal/orders"
	"github.com/microgem/storefront-backend/pkg/db/models"
)

// CreateOrderRequest is the checkout form.
type CreateOrderRequest struct {
	Name           string           `json:"name" validate:"required,max=255"`
	Email          string           `json:"email" validate:"required,email,max=255"`
	Address        string           `json:"address" validate:"required,max=1000"`
	Phone          string           `json:"phone,omitempty" validate:"max=50"`
	Note           string           `json:"note,omitempty" validate:"max=2000"`
	DiscountCoupon string           `json:"discount_coupon,omitempty" validate:"max=100"`
	Currency       string           `json:"currency,omitempty" validate:"max=10"`
	Method         string           `json:"method,omitempty" validate:"max=50"`
	Shipping       *decimal.Decimal `json:"shipping,omitempty"`
	Discount       *decimal.Decimal `json:"discount,omitempty"`
	CartToken      string           `json:"cart_token,omitempty"`
}

func (req CreateOrderRequest) toInput() ordersvc.CreateOrderInput {
	return ordersvc.CreateOrderInput{
		Name:           validators.SanitizeString(req.Name, 255),
		Email:          validators.SanitizeString(req.Email, 255),
		Address:        validators.SanitizeString(req.Address, 1000),
		Phone:          validators.SanitizeString(req.Phone, 50),
		Note:           validators.SanitizeString(req.Note, 2000),
		DiscountCoupon: validators.SanitizeString(req.DiscountCoupon, 100),
		Currency:       validators.SanitizeString(req.Currency, 10),
		Method:         validators.SanitizeString(req.Method, 50),
		Shipping:       req.Shipping,
		Discount:       req.Discount,
	}
}

// OrderProductResponse is one purchased line.
type OrderProductResponse struct {
	ID       int64       `json:"id"`
	SKU      string      `json:"sku"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

// OrderResponse is the placed order.
type OrderResponse struct {
	ID             int64                  `json:"id"`
	OrderNo        string                 `json:"order_no"`
	Name           string                 `json:"name"`
	Email          string                 `json:"email"`
	Phone          string                 `json:"phone"`
	Note           string                 `json:"note"`
	Address        string                 `json:"address"`
	DiscountCoupon string                 `json:"discount_coupon"`
	Currency       string                 `json:"currency"`
	Discount       json.Number            `json:"discount"`
	Subtotal       json.Number            `json:"subtotal"`
	Shipping       json.Number            `json:"shipping"`
	Total          json.Number            `json:"total"`
	Method         string                 `json:"method"`
	Status         int                    `json:"status"`
	Products       []OrderProductResponse `json:"products"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func newOrderResponse(order *models.Order) OrderResponse {
	out := OrderResponse{
		ID:             order.ID,
		OrderNo:        order.OrderNo,
		Name:           order.Name,
		Email:          order.Email,
		Phone:          order.Phone,
		Note:           order.Note,
		Address:        order.Address,
		DiscountCoupon: order.DiscountCoupon,
		Currency:       order.Currency,
		Discount:       money(order.Discount),
		Subtotal:       money(order.Subtotal),
		Shipping:       money(order.Shipping),
		Total:          money(order.Total),
		Method:         order.Method,
		Status:         int(order.Status),
		Products:       make([]OrderProductResponse, 0, len(order.Products)),
		CreatedAt:      order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      order.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, p := range order.Products {
		out.Products = append(out.Products, OrderProductResponse{
			ID:       p.ProductID,
			SKU:      p.SKU,
			Name:     p.Name,
			Price:    money(p.Price),
			Quantity: p.Quantity,
		})
	}
	return out
}
