package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lib/pq"

	"marketplace-catalog-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrCategoryNotFound   = errors.New("store: category not found")
	ErrCategoryNameExists = errors.New("store: category name already exists")
	ErrCategorySlugExists = errors.New("store: category slug already exists")
	ErrProductNotFound    = errors.New("store: product not found")
	ErrProductSKUExists   = errors.New("store: product SKU already exists")
)

// PostgresStore implements the CategoryStorer, ProductStorer and ImageStorer
// interfaces using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// --- CategoryStorer Implementation ---

func (s *PostgresStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `
		INSERT INTO catalog.categories (name, slug)
		VALUES ($1, $2)
		RETURNING id, name, slug, created_at, updated_at;
	`
	row := s.db.QueryRowContext(ctx, query, category.Name, category.Slug)

	var created domain.Category
	err := row.Scan(&created.ID, &created.Name, &created.Slug, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if uniqueErr := mapCategoryUniqueViolation(err); uniqueErr != nil {
			return nil, uniqueErr
		}
		return nil, fmt.Errorf("store: CreateCategory failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error) {
	countQuery := `SELECT COUNT(*) FROM catalog.categories;`
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to count categories: %w", err)
	}

	if totalCount == 0 {
		return []domain.Category{}, 0, nil
	}

	query := `
		SELECT id, name, slug, created_at, updated_at
		FROM catalog.categories
		ORDER BY name ASC
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.db.QueryContext(ctx, query, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, params.Limit)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}

	return categories, totalCount, nil
}

func (s *PostgresStore) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	query := `
		SELECT id, name, slug, created_at, updated_at
		FROM catalog.categories
		WHERE id = $1;
	`
	var category domain.Category
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID, &category.Name, &category.Slug, &category.CreatedAt, &category.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: GetCategoryByID failed to scan row: %w", err)
	}
	return &category, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `
		UPDATE catalog.categories
		SET name = $1, slug = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		RETURNING id, name, slug, created_at, updated_at;
	`
	var updated domain.Category
	err := s.db.QueryRowContext(ctx, query, category.Name, category.Slug, category.ID).Scan(
		&updated.ID, &updated.Name, &updated.Slug, &updated.CreatedAt, &updated.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		if uniqueErr := mapCategoryUniqueViolation(err); uniqueErr != nil {
			return nil, uniqueErr
		}
		return nil, fmt.Errorf("store: UpdateCategory failed to scan row: %w", err)
	}
	return &updated, nil
}

// DeleteCategory removes a category; products referencing it get their
// category_id set to NULL by the FK constraint.
func (s *PostgresStore) DeleteCategory(ctx context.Context, id int64) error {
	query := `DELETE FROM catalog.categories WHERE id = $1;`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func mapCategoryUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if strings.Contains(pqErr.Constraint, "categories_slug_key") || strings.Contains(pqErr.Detail, "Key (slug)") {
			return ErrCategorySlugExists
		}
		if strings.Contains(pqErr.Constraint, "categories_name_key") || strings.Contains(pqErr.Detail, "Key (name)") {
			return ErrCategoryNameExists
		}
	}
	return nil
}

// --- ProductStorer Implementation ---

const productColumns = `id, sku, name, description, price, category_id, available,
			shop_id, shop_name, shop_lat, shop_lng, tags, created_at, updated_at`

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO catalog.products
			(sku, name, description, price, category_id, available, shop_id, shop_name, shop_lat, shop_lng, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + productColumns + `;
	`
	row := s.db.QueryRowContext(ctx, query,
		product.SKU, product.Name, product.Description, product.Price,
		product.CategoryID, product.Available,
		product.ShopID, product.ShopName, product.ShopLat, product.ShopLng,
		pq.Array(product.Tags),
	)

	created, err := scanProduct(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Concurrent creators may race on a generated SKU; the caller
			// retries with a fresh candidate on this error.
			if strings.Contains(pqErr.Constraint, "products_sku_key") || strings.Contains(pqErr.Detail, "Key (sku)") {
				return nil, ErrProductSKUExists
			}
		}
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error) {
	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if params.SearchQuery != nil && *params.SearchQuery != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argID, argID+1))
		searchTerm := "%" + *params.SearchQuery + "%"
		queryArgs = append(queryArgs, searchTerm, searchTerm)
		argID += 2
	}
	if params.CategoryID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("category_id = $%d", argID))
		queryArgs = append(queryArgs, *params.CategoryID)
		argID++
	}
	if params.MinPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price >= $%d", argID))
		queryArgs = append(queryArgs, *params.MinPrice)
		argID++
	}
	if params.MaxPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price <= $%d", argID))
		queryArgs = append(queryArgs, *params.MaxPrice)
		argID++
	}
	if params.SKU != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("sku = $%d", argID))
		queryArgs = append(queryArgs, *params.SKU)
		argID++
	}
	if params.Available != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("available = $%d", argID))
		queryArgs = append(queryArgs, *params.Available)
		argID++
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM catalog.products" + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to count products: %w", err)
	}

	if totalCount == 0 {
		return []domain.Product{}, 0, nil
	}

	sortColumn := "updated_at"
	allowedSortColumns := map[string]string{
		"name":       "name",
		"price":      "price",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	if col, ok := allowedSortColumns[strings.ToLower(params.SortBy)]; ok {
		sortColumn = col
	}

	sortOrder := "DESC"
	if strings.ToUpper(params.SortOrder) == "ASC" {
		sortOrder = "ASC"
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM catalog.products%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		productColumns, whereCondition, sortColumn, sortOrder, argID, argID+1)

	finalQueryArgs := append(queryArgs, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, dataQuery, finalQueryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows, params.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts: %w", err)
	}
	return products, totalCount, nil
}

func (s *PostgresStore) ListAvailableProducts(ctx context.Context, nameQuery *string) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM catalog.products
		WHERE available = TRUE`
	var args []interface{}
	if nameQuery != nil && *nameQuery != "" {
		query += ` AND name ILIKE $1`
		args = append(args, "%"+*nameQuery+"%")
	}
	query += ` ORDER BY updated_at DESC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: ListAvailableProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows, 0)
	if err != nil {
		return nil, fmt.Errorf("store: ListAvailableProducts: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM catalog.products
		WHERE id = $1;`
	product, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductByID failed to scan row: %w", err)
	}
	return product, nil
}

// UpdateProduct persists client-mutable fields. The shop snapshot columns
// are deliberately absent from the SET list: they are frozen at creation.
func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		UPDATE catalog.products
		SET sku = $1, name = $2, description = $3, price = $4, category_id = $5,
			available = $6, tags = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $8
		RETURNING ` + productColumns + `;
	`
	row := s.db.QueryRowContext(ctx, query,
		product.SKU, product.Name, product.Description, product.Price,
		product.CategoryID, product.Available, pq.Array(product.Tags), product.ID,
	)

	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "products_sku_key") || strings.Contains(pqErr.Detail, "Key (sku)") {
				return nil, ErrProductSKUExists
			}
		}
		return nil, fmt.Errorf("store: UpdateProduct failed to scan row: %w", err)
	}
	return updated, nil
}

// DeleteProduct removes a product; its images cascade-delete with it.
func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	query := `DELETE FROM catalog.products WHERE id = $1;`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// --- ImageStorer Implementation ---

func (s *PostgresStore) CreateProductImage(ctx context.Context, image *domain.ProductImage) (*domain.ProductImage, error) {
	query := `
		INSERT INTO catalog.product_images (product_id, storage_key, url, alt_text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, product_id, storage_key, url, alt_text, created_at;
	`
	var created domain.ProductImage
	err := s.db.QueryRowContext(ctx, query, image.ProductID, image.StorageKey, image.URL, image.AltText).Scan(
		&created.ID, &created.ProductID, &created.StorageKey, &created.URL, &created.AltText, &created.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // FK violation: product gone
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: CreateProductImage failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) ListProductImages(ctx context.Context, productID int64) ([]domain.ProductImage, error) {
	query := `
		SELECT id, product_id, storage_key, url, alt_text, created_at
		FROM catalog.product_images
		WHERE product_id = $1
		ORDER BY id ASC;
	`
	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("store: ListProductImages failed to query images: %w", err)
	}
	defer rows.Close()

	images := make([]domain.ProductImage, 0)
	for rows.Next() {
		var img domain.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.StorageKey, &img.URL, &img.AltText, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: ListProductImages failed to scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProductImages iteration error: %w", err)
	}
	return images, nil
}

// --- Helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.Available,
		&p.ShopID, &p.ShopName, &p.ShopLat, &p.ShopLng, pq.Array(&p.Tags),
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

func collectProducts(rows *sql.Rows, capacityHint int) ([]domain.Product, error) {
	products := make([]domain.Product, 0, capacityHint)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		log.Println("INFO: Closing database connection pool...")
		err := s.db.Close()
		if err != nil {
			log.Printf("ERROR: Failed to close database connection pool: %v", err)
			return err
		}
		log.Println("INFO: Database connection pool closed successfully.")
		return nil
	}
	return nil
}
