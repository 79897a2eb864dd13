package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products. Name and Slug are both unique; products keep a
// nullable reference that is set to NULL when the category is deleted.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a catalog entry owned by a shop.
//
// ShopID, ShopName, ShopLat and ShopLng are a denormalized snapshot of the
// owning shop, frozen at creation time from the shop directory. They are
// never refreshed afterwards and are read-only through the public API.
type Product struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	Available   bool            `json:"available"`

	ShopID   int64    `json:"shop_id"`
	ShopName string   `json:"shop_name"`
	ShopLat  *float64 `json:"shop_lat"`
	ShopLng  *float64 `json:"shop_lng"`

	Tags []string `json:"tags"`

	Images []ProductImage `json:"images,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCoordinates reports whether the shop snapshot carries a usable location.
func (p *Product) HasCoordinates() bool {
	return p.ShopLat != nil && p.ShopLng != nil
}

// ProductImage belongs to exactly one product and is deleted with it.
// StorageKey identifies the binary in blob storage; URL is what clients fetch.
type ProductImage struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"-"`
	StorageKey string    `json:"-"`
	URL        string    `json:"image"`
	AltText    string    `json:"alt_text"`
	CreatedAt  time.Time `json:"created_at"`
}
