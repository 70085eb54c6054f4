package cart

// AddItemRequest adds qty of a product to the cart. A missing or sub-one qty
// counts as one.
type AddItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Qty       int    `json:"qty"`
	CartToken string `json:"cart_token,omitempty"`
}

// UpdateItemRequest sets the quantity of an existing line; zero or less removes it.
type UpdateItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Qty       *int   `json:"qty" validate:"required"`
	CartToken string `json:"cart_token,omitempty"`
}

// RemoveItemRequest drops a line from the cart.
type RemoveItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID *int64 `json:"variant_id,omitempty"`
	CartToken string `json:"cart_token,omitempty"`
}
