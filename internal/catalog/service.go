// Package catalog orchestrates product operations: it authorizes callers,
// consults the shop directory on creation, and runs the geo-radius search.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/shopspring/decimal"

	"marketplace-catalog-service/internal/auth"
	"marketplace-catalog-service/internal/blob"
	"marketplace-catalog-service/internal/domain"
	"marketplace-catalog-service/internal/geo"
	"marketplace-catalog-service/internal/shopdir"
	"marketplace-catalog-service/internal/store"
)

var (
	// ErrNotAuthenticated means the operation needs a verified caller and
	// none was presented.
	ErrNotAuthenticated = errors.New("catalog: authentication required")
	// ErrPermissionDenied means the caller's role or shop ownership does
	// not cover the target.
	ErrPermissionDenied = errors.New("catalog: permission denied")
	// ErrNoShopFound is the denial returned when the directory has no shop
	// for the creating owner. A directory outage deliberately collapses
	// into the same denial at the API boundary; the two cases are logged
	// distinctly.
	ErrNoShopFound = errors.New("catalog: no shop found for this owner")
)

// maxSKUAttempts bounds the retry loop for server-generated SKU collisions.
const maxSKUAttempts = 5

// ShopDirectory resolves the shops a user owns. Satisfied by
// *shopdir.Client.
type ShopDirectory interface {
	ListOwnedShops(ctx context.Context, ownerID int64, credential string) ([]shopdir.Shop, error)
}

// Service wires the authorization guard, the shop directory, blob storage
// and the record store together. It holds no per-request state.
type Service struct {
	products store.ProductStorer
	images   store.ImageStorer
	shops    ShopDirectory
	blobs    blob.Store
}

// NewService creates the catalog service.
func NewService(products store.ProductStorer, images store.ImageStorer, shops ShopDirectory, blobs blob.Store) *Service {
	return &Service{products: products, images: images, shops: shops, blobs: blobs}
}

// ProductInput carries the client-mutable product fields. The shop snapshot
// is never part of it: those fields are server-assigned on create and
// untouched on update regardless of payload content.
type ProductInput struct {
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  *int64
	Available   *bool
	Tags        []string
}

// CreateProduct creates a product for the caller's shop. The caller must
// hold the shop_owner role; the shop snapshot is fetched once from the
// directory (first shop wins when the owner has several) and frozen into
// the row. A missing SKU is generated server-side and regenerated on
// collision.
func (s *Service) CreateProduct(ctx context.Context, claims *auth.Claims, credential string, input ProductInput) (*domain.Product, error) {
	if claims == nil {
		return nil, ErrNotAuthenticated
	}
	if !auth.CanCreate(claims) {
		return nil, fmt.Errorf("%w: only shop owners can create products", ErrPermissionDenied)
	}

	shops, err := s.shops.ListOwnedShops(ctx, claims.UserID, credential)
	if err != nil {
		if errors.Is(err, shopdir.ErrNoShopsFound) {
			log.Printf("INFO: CreateProduct denied: user %d owns no shops", claims.UserID)
		} else {
			log.Printf("WARN: CreateProduct denied: directory lookup for user %d failed: %v", claims.UserID, err)
		}
		return nil, ErrNoShopFound
	}
	shop := shops[0]

	product := &domain.Product{
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		CategoryID:  input.CategoryID,
		Available:   true,
		ShopID:      shop.ID,
		ShopName:    shop.Name,
		ShopLat:     shop.Latitude,
		ShopLng:     shop.Longitude,
		Tags:        input.Tags,
	}
	if input.Available != nil {
		product.Available = *input.Available
	}
	if product.Tags == nil {
		product.Tags = []string{}
	}

	if product.SKU != "" {
		return s.products.CreateProduct(ctx, product)
	}

	for attempt := 0; attempt < maxSKUAttempts; attempt++ {
		product.SKU = GenerateSKU()
		created, err := s.products.CreateProduct(ctx, product)
		if errors.Is(err, store.ErrProductSKUExists) {
			continue
		}
		return created, err
	}
	return nil, fmt.Errorf("catalog: could not generate a unique SKU after %d attempts", maxSKUAttempts)
}

// UpdateProduct applies client-mutable fields to an existing product after
// an ownership check against the stored row.
func (s *Service) UpdateProduct(ctx context.Context, claims *auth.Claims, productID int64, input ProductInput) (*domain.Product, error) {
	existing, err := s.authorizeMutation(ctx, claims, productID)
	if err != nil {
		return nil, err
	}

	// An omitted SKU keeps the stored one; SKUs are server-generated when
	// absent and must never be persisted empty.
	if input.SKU != "" {
		existing.SKU = input.SKU
	}
	existing.Name = input.Name
	existing.Description = input.Description
	existing.Price = input.Price
	existing.CategoryID = input.CategoryID
	existing.Tags = input.Tags
	if existing.Tags == nil {
		existing.Tags = []string{}
	}
	if input.Available != nil {
		existing.Available = *input.Available
	}

	return s.products.UpdateProduct(ctx, existing)
}

// DeleteProduct removes a product after an ownership check.
func (s *Service) DeleteProduct(ctx context.Context, claims *auth.Claims, productID int64) error {
	if _, err := s.authorizeMutation(ctx, claims, productID); err != nil {
		return err
	}
	return s.products.DeleteProduct(ctx, productID)
}

// GetProduct returns a product with its images. Public.
func (s *Service) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	images, err := s.images.ListProductImages(ctx, productID)
	if err != nil {
		return nil, err
	}
	product.Images = images
	return product, nil
}

// ListProducts is the faceted paginated listing, delegated to the store.
// Public.
func (s *Service) ListProducts(ctx context.Context, params store.ListProductsParams) ([]domain.Product, int, error) {
	return s.products.ListProducts(ctx, params)
}

// SearchByRadius runs the geo search: available products, an optional name
// substring filter, then haversine ranking within radiusKm of the origin.
// Public.
func (s *Service) SearchByRadius(ctx context.Context, nameQuery *string, lat, lng, radiusKm float64) ([]geo.RankedProduct, error) {
	candidates, err := s.products.ListAvailableProducts(ctx, nameQuery)
	if err != nil {
		return nil, err
	}
	return geo.Rank(candidates, lat, lng, radiusKm), nil
}

// AddImage stores an uploaded image binary and links a row to the product.
// Requires the same ownership as any other mutation of the product.
func (s *Service) AddImage(ctx context.Context, claims *auth.Claims, productID int64, filename string, body io.Reader, altText string) (*domain.ProductImage, error) {
	if _, err := s.authorizeMutation(ctx, claims, productID); err != nil {
		return nil, err
	}

	key, url, err := s.blobs.Save(filename, body)
	if err != nil {
		return nil, err
	}

	return s.images.CreateProductImage(ctx, &domain.ProductImage{
		ProductID:  productID,
		StorageKey: key,
		URL:        url,
		AltText:    altText,
	})
}

// authorizeMutation loads the target product and applies the ownership
// guard. All denials happen before any write; denied requests never
// partially mutate.
func (s *Service) authorizeMutation(ctx context.Context, claims *auth.Claims, productID int64) (*domain.Product, error) {
	if claims == nil {
		return nil, ErrNotAuthenticated
	}
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !auth.CanMutate(claims, product) {
		return nil, fmt.Errorf("%w: you can't modify products of other shops", ErrPermissionDenied)
	}
	return product, nil
}
