package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const blobSchema = 1

// Line is one stored cart entry. A nil VariantID means "no variant" and only
// matches other lines without a variant.
type Line struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id"`
	Qty       int    `json:"qty"`
}

func (l Line) matches(productID int64, variantID *int64) bool {
	if l.ProductID != productID {
		return false
	}
	if l.VariantID == nil || variantID == nil {
		return l.VariantID == nil && variantID == nil
	}
	return *l.VariantID == *variantID
}

// Cart is the stored guest cart. Version increases on every successful write
// and is zero for a cart that was never stored.
type Cart struct {
	Schema    int       `json:"schema"`
	Version   int64     `json:"version"`
	Items     []Line    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Cart) indexOf(productID int64, variantID *int64) int {
	for i, line := range c.Items {
		if line.matches(productID, variantID) {
			return i
		}
	}
	return -1
}

// ViewItem is a cart line joined with live catalog data.
type ViewItem struct {
	ProductID int64
	VariantID *int64
	SKU       string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Thumbnail string
	ItemTotal decimal.Decimal
}

// View is the enriched cart returned by every cart operation.
type View struct {
	Items     []ViewItem
	Subtotal  decimal.Decimal
	Count     int
	UpdatedAt time.Time
}

// tokenLen is the length of the hyphenated UUID form. Braced, urn and
// undashed spellings would map one UUID to several cart keys.
const tokenLen = 36

// ValidToken reports whether token is a canonical hyphenated UUID.
func ValidToken(token string) bool {
	if len(token) != tokenLen {
		return false
	}
	_, err := uuid.Parse(token)
	return err == nil
}

// NewToken issues a fresh cart token.
func NewToken() string {
	return uuid.NewString()
}
