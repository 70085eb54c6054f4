package cart

import (
	"encoding/json"
	"time"

	cartsvc "github.com/microgem/storefront-backend/internal/cart"
)

// ItemResponse is one enriched cart line.
type ItemResponse struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Thumbnail string `json:"thumbnail"`
}

// Response is the cart payload returned by every cart endpoint.
type Response struct {
	Items     []ItemResponse `json:"items"`
	Subtotal  json.Number    `json:"subtotal"`
	Count     int            `json:"count"`
	UpdatedAt string         `json:"updated_at"`
}

// now is swapped in tests.
var now = time.Now

func newResponse(view *cartsvc.View) Response {
	if view == nil {
		return emptyResponse()
	}
	out := Response{
		Items:    make([]ItemResponse, 0, len(view.Items)),
		Subtotal: json.Number(view.Subtotal.StringFixed(2)),
		Count:    view.Count,
	}
	for _, item := range view.Items {
		out.Items = append(out.Items, ItemResponse{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			SKU:       item.SKU,
			Name:      item.Name,
			Price:     item.Price.StringFixed(2),
			Quantity:  item.Quantity,
			Thumbnail: item.Thumbnail,
		})
	}
	out.UpdatedAt = timestamp(view.UpdatedAt)
	return out
}

// emptyResponse describes a cart that has never been stored. Its timestamp
// is the current time.
func emptyResponse() Response {
	return Response{Items: []ItemResponse{}, Subtotal: json.Number("0.00"), UpdatedAt: timestamp(time.Time{})}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = now()
	}
	return t.UTC().Format(time.RFC3339)
}
