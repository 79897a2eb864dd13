package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"marketplace-catalog-service/internal/auth"
	"marketplace-catalog-service/internal/catalog"
	"marketplace-catalog-service/internal/domain"
	"marketplace-catalog-service/internal/geo"
	"marketplace-catalog-service/internal/store"
)

// defaultRadiusKm is used when a geo search does not specify radius_km.
const defaultRadiusKm = 5.0

// CatalogService is the orchestration surface the HTTP layer depends on.
// Implemented by *catalog.Service.
type CatalogService interface {
	CreateProduct(ctx context.Context, claims *auth.Claims, credential string, input catalog.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, claims *auth.Claims, productID int64, input catalog.ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, claims *auth.Claims, productID int64) error
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	ListProducts(ctx context.Context, params store.ListProductsParams) ([]domain.Product, int, error)
	SearchByRadius(ctx context.Context, nameQuery *string, lat, lng, radiusKm float64) ([]geo.RankedProduct, error)
	AddImage(ctx context.Context, claims *auth.Claims, productID int64, filename string, body io.Reader, altText string) (*domain.ProductImage, error)
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	service       CatalogService
	categoryStore store.CategoryStorer
	verifier      *auth.Verifier
	validate      *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(service CatalogService, cs store.CategoryStorer, verifier *auth.Verifier) *HTTPHandler {
	return &HTTPHandler{
		service:       service,
		categoryStore: cs,
		verifier:      verifier,
		validate:      validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // Avoid writing empty body for 204 No Content
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("ERROR: Failed to encode JSON response: %v", err)
			http.Error(w, `{"error": "Internal server error during JSON encoding"}`, http.StatusInternalServerError)
		}
	}
}

// paginationInfo matches the listing envelope shared by all paginated
// endpoints.
type paginationInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

func newPaginationInfo(page, limit, totalCount int) paginationInfo {
	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	return paginationInfo{Page: page, Limit: limit, TotalItems: totalCount, TotalPages: totalPages}
}

func parsePagination(r *http.Request) (page, limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	page, err = strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}
	return page, limit, (page - 1) * limit
}

// respondProductServiceError maps catalog/store errors onto the HTTP error
// taxonomy. permMsg is the 403 body for ownership/role denials, which
// differs between create ("only shop owners") and mutate ("other shops").
func respondProductServiceError(w http.ResponseWriter, err error, permMsg, fallback string) {
	switch {
	case errors.Is(err, catalog.ErrNotAuthenticated):
		respondWithError(w, http.StatusUnauthorized, msgAuthRequired)
	case errors.Is(err, catalog.ErrNoShopFound):
		respondWithError(w, http.StatusForbidden, "No shop found for this owner")
	case errors.Is(err, catalog.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, permMsg)
	case errors.Is(err, store.ErrProductNotFound):
		respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
	case errors.Is(err, store.ErrProductSKUExists):
		respondWithError(w, http.StatusConflict, store.ErrProductSKUExists.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// --- Category Handlers ---

// CategoryInput defines the expected input for creating or updating a
// category. Slug is derived from the name when absent.
type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"omitempty,max=120"`
}

// requireShopOwner gates category mutations: any authenticated shop owner
// may manage the shared category tree.
func (h *HTTPHandler) requireShopOwner(w http.ResponseWriter, r *http.Request) bool {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, msgAuthRequired)
		return false
	}
	if !auth.CanCreate(claims) {
		respondWithError(w, http.StatusForbidden, "Only shop owners can manage categories")
		return false
	}
	return true
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if !h.requireShopOwner(w, r) {
		return
	}

	var input CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	category := &domain.Category{
		Name: input.Name,
		Slug: input.Slug,
	}
	if category.Slug == "" {
		category.Slug = slugify(category.Name)
	}

	created, err := h.categoryStore.CreateCategory(r.Context(), category)
	if err != nil {
		log.Printf("ERROR: CreateCategory store operation failed: %v", err)
		respondCategoryStoreError(w, err, "Failed to create category")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePagination(r)

	categories, totalCount, err := h.categoryStore.ListCategories(r.Context(), store.ListCategoriesParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: ListCategories store operation failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve categories")
		return
	}

	respondWithJSON(w, http.StatusOK, struct {
		Data       []domain.Category `json:"data"`
		Pagination paginationInfo    `json:"pagination"`
	}{
		Data:       categories,
		Pagination: newPaginationInfo(page, limit, totalCount),
	})
}

func (h *HTTPHandler) GetCategoryByID(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := parseIDParam(w, r, "categoryId", "Invalid category ID format")
	if !ok {
		return
	}

	category, err := h.categoryStore.GetCategoryByID(r.Context(), categoryID)
	if err != nil {
		log.Printf("ERROR: GetCategoryByID store operation for ID %d failed: %v", categoryID, err)
		if errors.Is(err, store.ErrCategoryNotFound) {
			respondWithError(w, http.StatusNotFound, store.ErrCategoryNotFound.Error())
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to retrieve category")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, category)
}

func (h *HTTPHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	if !h.requireShopOwner(w, r) {
		return
	}

	categoryID, ok := parseIDParam(w, r, "categoryId", "Invalid category ID format")
	if !ok {
		return
	}

	var input CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	category := &domain.Category{
		ID:   categoryID,
		Name: input.Name,
		Slug: input.Slug,
	}
	if category.Slug == "" {
		category.Slug = slugify(category.Name)
	}

	updated, err := h.categoryStore.UpdateCategory(r.Context(), category)
	if err != nil {
		log.Printf("ERROR: UpdateCategory store operation for ID %d failed: %v", categoryID, err)
		if errors.Is(err, store.ErrCategoryNotFound) {
			respondWithError(w, http.StatusNotFound, store.ErrCategoryNotFound.Error())
		} else {
			respondCategoryStoreError(w, err, "Failed to update category")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if !h.requireShopOwner(w, r) {
		return
	}

	categoryID, ok := parseIDParam(w, r, "categoryId", "Invalid category ID format")
	if !ok {
		return
	}

	if err := h.categoryStore.DeleteCategory(r.Context(), categoryID); err != nil {
		log.Printf("ERROR: DeleteCategory store operation for ID %d failed: %v", categoryID, err)
		if errors.Is(err, store.ErrCategoryNotFound) {
			respondWithError(w, http.StatusNotFound, store.ErrCategoryNotFound.Error())
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to delete category")
		}
		return
	}

	respondWithJSON(w, http.StatusNoContent, nil)
}

func respondCategoryStoreError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrCategoryNameExists):
		respondWithError(w, http.StatusConflict, store.ErrCategoryNameExists.Error())
	case errors.Is(err, store.ErrCategorySlugExists):
		respondWithError(w, http.StatusConflict, store.ErrCategorySlugExists.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// slugify derives a URL-safe slug from a category name.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// --- Product Handlers ---

// ProductInput defines the client-supplied product fields for create and
// update. Shop snapshot fields are deliberately not accepted: they are
// server-assigned at creation and immutable afterwards, whatever the
// payload contains.
type ProductInput struct {
	SKU         string          `json:"sku" validate:"omitempty,max=64"`
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"omitempty"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  *int64          `json:"category_id" validate:"omitempty,gt=0"`
	Available   *bool           `json:"available"`
	Tags        []string        `json:"tags" validate:"omitempty,dive,max=64"`
}

func (h *HTTPHandler) decodeProductInput(w http.ResponseWriter, r *http.Request) (*catalog.ProductInput, bool) {
	var input ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return nil, false
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return nil, false
	}
	if input.Price.IsNegative() {
		respondWithError(w, http.StatusBadRequest, "Validation failed: price must not be negative")
		return nil, false
	}

	return &catalog.ProductInput{
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		CategoryID:  input.CategoryID,
		Available:   input.Available,
		Tags:        input.Tags,
	}, true
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, msgAuthRequired)
		return
	}

	input, ok := h.decodeProductInput(w, r)
	if !ok {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), claims, tokenFromContext(r.Context()), *input)
	if err != nil {
		log.Printf("ERROR: CreateProduct failed for user %d: %v", claims.UserID, err)
		respondProductServiceError(w, err, "Only shop owners can create products", "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "productId", "Invalid product ID format")
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		log.Printf("ERROR: GetProduct for ID %d failed: %v", productID, err)
		if errors.Is(err, store.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to retrieve product")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "productId", "Invalid product ID format")
	if !ok {
		return
	}

	input, ok := h.decodeProductInput(w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), claimsFromContext(r.Context()), productID, *input)
	if err != nil {
		log.Printf("ERROR: UpdateProduct for ID %d failed: %v", productID, err)
		respondProductServiceError(w, err, "You can't modify products of other shops.", "Failed to update product")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "productId", "Invalid product ID format")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), claimsFromContext(r.Context()), productID); err != nil {
		log.Printf("ERROR: DeleteProduct for ID %d failed: %v", productID, err)
		respondProductServiceError(w, err, "You can't modify products of other shops.", "Failed to delete product")
		return
	}

	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()
	page, limit, offset := parsePagination(r)

	params := store.ListProductsParams{Limit: limit, Offset: offset}

	if q := qParams.Get("q"); q != "" {
		params.SearchQuery = &q
	}
	if skuStr := qParams.Get("sku"); skuStr != "" {
		params.SKU = &skuStr
	}
	if idStr := qParams.Get("category_id"); idStr != "" {
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil && id > 0 {
			params.CategoryID = &id
		} else {
			respondWithError(w, http.StatusBadRequest, "Invalid category_id format")
			return
		}
	}
	if priceStr := qParams.Get("min_price"); priceStr != "" {
		if price, err := decimal.NewFromString(priceStr); err == nil && !price.IsNegative() {
			params.MinPrice = &price
		} else {
			respondWithError(w, http.StatusBadRequest, "Invalid min_price format")
			return
		}
	}
	if priceStr := qParams.Get("max_price"); priceStr != "" {
		if price, err := decimal.NewFromString(priceStr); err == nil && !price.IsNegative() {
			params.MaxPrice = &price
		} else {
			respondWithError(w, http.StatusBadRequest, "Invalid max_price format")
			return
		}
	}
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		respondWithError(w, http.StatusBadRequest, "min_price cannot exceed max_price")
		return
	}
	if availStr := qParams.Get("available"); availStr != "" {
		if b, err := strconv.ParseBool(availStr); err == nil {
			params.Available = &b
		} else {
			respondWithError(w, http.StatusBadRequest, "Invalid available value: must be true or false")
			return
		}
	}

	params.SortBy = qParams.Get("sort_by")
	params.SortOrder = qParams.Get("sort_order")

	allowedSortFields := map[string]bool{"name": true, "price": true, "created_at": true, "updated_at": true, "": true}
	if !allowedSortFields[params.SortBy] {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid sort_by field. Allowed: %v", getMapKeys(allowedSortFields)))
		return
	}
	if params.SortOrder != "" && strings.ToLower(params.SortOrder) != "asc" && strings.ToLower(params.SortOrder) != "desc" {
		respondWithError(w, http.StatusBadRequest, "Invalid sort_order value. Allowed: asc, desc")
		return
	}

	products, totalCount, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: ListProducts store operation failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve products")
		return
	}

	respondWithJSON(w, http.StatusOK, struct {
		Data       []domain.Product `json:"data"`
		Pagination paginationInfo   `json:"pagination"`
	}{
		Data:       products,
		Pagination: newPaginationInfo(page, limit, totalCount),
	})
}

// geoSearchItem annotates a product with its distance from the search
// origin, rounded to 3 decimal places.
type geoSearchItem struct {
	domain.Product
	DistanceKm float64 `json:"distance_km"`
}

// SearchProducts serves GET /products/search. With both lat and lng it runs
// the geo-radius ranking; otherwise it falls back to a paginated listing of
// available products.
func (h *HTTPHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()

	var nameQuery *string
	if q := qParams.Get("q"); q != "" {
		nameQuery = &q
	}

	latStr := qParams.Get("lat")
	lngStr := qParams.Get("lng")

	if latStr != "" && lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat != nil || errLng != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid lat/lng")
			return
		}

		radiusKm := defaultRadiusKm
		if radiusStr := qParams.Get("radius_km"); radiusStr != "" {
			parsed, err := strconv.ParseFloat(radiusStr, 64)
			if err != nil || parsed < 0 {
				respondWithError(w, http.StatusBadRequest, "Invalid radius_km")
				return
			}
			radiusKm = parsed
		}

		ranked, err := h.service.SearchByRadius(r.Context(), nameQuery, lat, lng, radiusKm)
		if err != nil {
			log.Printf("ERROR: SearchByRadius failed: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to search products")
			return
		}

		items := make([]geoSearchItem, 0, len(ranked))
		for _, rp := range ranked {
			items = append(items, geoSearchItem{Product: rp.Product, DistanceKm: rp.DistanceKm})
		}
		respondWithJSON(w, http.StatusOK, items)
		return
	}

	// No coordinates: standard paginated listing over available products.
	page, limit, offset := parsePagination(r)
	available := true
	products, totalCount, err := h.service.ListProducts(r.Context(), store.ListProductsParams{
		Limit:       limit,
		Offset:      offset,
		SearchQuery: nameQuery,
		Available:   &available,
	})
	if err != nil {
		log.Printf("ERROR: SearchProducts listing failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to search products")
		return
	}

	respondWithJSON(w, http.StatusOK, struct {
		Data       []domain.Product `json:"data"`
		Pagination paginationInfo   `json:"pagination"`
	}{
		Data:       products,
		Pagination: newPaginationInfo(page, limit, totalCount),
	})
}

// UploadProductImage serves multipart image uploads for a product. The
// caller must pass the same ownership check as any other mutation.
func (h *HTTPHandler) UploadProductImage(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r, "productId", "Invalid product ID format")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart payload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "No image uploaded")
		return
	}
	defer file.Close()

	altText := r.FormValue("alt_text")

	image, err := h.service.AddImage(r.Context(), claimsFromContext(r.Context()), productID, header.Filename, file, altText)
	if err != nil {
		log.Printf("ERROR: UploadProductImage for product %d failed: %v", productID, err)
		respondProductServiceError(w, err, "You can't modify products of other shops.", "Failed to upload image")
		return
	}

	respondWithJSON(w, http.StatusCreated, image)
}

// --- Shared parsing helpers ---

func parseIDParam(w http.ResponseWriter, r *http.Request, param, badFormatMsg string) (int64, bool) {
	idStr := chi.URLParam(r, param)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, badFormatMsg)
		return 0, false
	}
	return id, true
}

// Helper to get keys from a map for error messages
func getMapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.bearerAuth)

		r.Route("/api/v1/categories", func(r chi.Router) {
			r.Post("/", h.CreateCategory)
			r.Get("/", h.ListCategories)
			r.Route("/{categoryId}", func(r chi.Router) {
				r.Get("/", h.GetCategoryByID)
				r.Put("/", h.UpdateCategory)
				r.Delete("/", h.DeleteCategory)
			})
		})

		r.Route("/api/v1/products", func(r chi.Router) {
			r.Post("/", h.CreateProduct)
			r.Get("/", h.ListProducts)
			// Must come before the {productId} subtree so "search" is not
			// parsed as an ID.
			r.Get("/search", h.SearchProducts)

			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", h.GetProductByID)
				r.Put("/", h.UpdateProduct)
				r.Delete("/", h.DeleteProduct)
				r.Post("/images", h.UploadProductImage)
			})
		})
	})
}
