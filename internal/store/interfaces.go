package store

import (
	"context"

	"github.com/shopspring/decimal"

	"marketplace-catalog-service/internal/domain"
)

// ListCategoriesParams holds parameters for listing categories.
type ListCategoriesParams struct {
	Limit  int
	Offset int
}

// CategoryStorer defines the database operations for categories.
type CategoryStorer interface {
	CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error)
	UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// ListProductsParams holds parameters for the faceted product listing
// (pagination, filtering, sorting).
type ListProductsParams struct {
	Limit       int
	Offset      int
	SearchQuery *string // Substring match on name/description
	CategoryID  *int64
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	SKU         *string
	Available   *bool
	SortBy      string // e.g. "price", "name", "created_at"
	SortOrder   string // "asc" or "desc"
}

// ProductStorer defines the database operations for products.
type ProductStorer interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error)
	// ListAvailableProducts returns every available product, optionally
	// narrowed by a case-insensitive name substring. It is the candidate
	// feed for geo-radius ranking, which needs the full set rather than a
	// page.
	ListAvailableProducts(ctx context.Context, nameQuery *string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// ImageStorer defines the database operations for product images.
type ImageStorer interface {
	CreateProductImage(ctx context.Context, image *domain.ProductImage) (*domain.ProductImage, error)
	ListProductImages(ctx context.Context, productID int64) ([]domain.ProductImage, error)
}
