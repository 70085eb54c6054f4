package orders

import (
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
)

// CreateOrderInput carries the customer details submitted at checkout.
// Empty Currency and Method fall back to configured defaults; nil Shipping
// and Discount mean zero.
type CreateOrderInput struct {
	Name           string
	Email          string
	Phone          string
	Note           string
	Address        string
	DiscountCoupon string
	Currency       string
	Method         string
	Shipping       *decimal.Decimal
	Discount       *decimal.Decimal
}

func (in CreateOrderInput) validate() error {
	missing := []string{}
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(in.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
			WithDetails(map[string]any{"fields": missing})
	}
	if in.Shipping != nil && in.Shipping.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping must be non-negative")
	}
	if in.Discount != nil && in.Discount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount must be non-negative")
	}
	return nil
}

// OrderCreatedEvent is the payload of the order.created event.
type OrderCreatedEvent struct {
	OrderID  int64  `json:"order_id"`
	OrderNo  string `json:"order_no"`
	Email    string `json:"email"`
	Currency string `json:"currency"`
	Total    string `json:"total"`
	Lines    int    `json:"lines"`
}

func amountOrZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
