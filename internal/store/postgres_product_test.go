package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-catalog-service/internal/domain"
)

var productTestColumns = []string{
	"id", "sku", "name", "description", "price", "category_id", "available",
	"shop_id", "shop_name", "shop_lat", "shop_lng", "tags", "created_at", "updated_at",
}

func testProduct() *domain.Product {
	return &domain.Product{
		SKU:         "AB12CD34",
		Name:        "Leather Sofa",
		Description: "Three-seater",
		Price:       decimal.RequireFromString("499.90"),
		CategoryID:  PtrTo(int64(3)),
		Available:   true,
		ShopID:      7,
		ShopName:    "Oak & Iron",
		ShopLat:     PtrTo(51.5),
		ShopLng:     PtrTo(-0.12),
		Tags:        []string{"leather", "sofa"},
	}
}

func productRow(now time.Time, p *domain.Product, id int64) *sqlmock.Rows {
	return sqlmock.NewRows(productTestColumns).AddRow(
		id, p.SKU, p.Name, p.Description, p.Price.String(), p.CategoryID, p.Available,
		p.ShopID, p.ShopName, p.ShopLat, p.ShopLng, []byte(`{leather,sofa}`), now, now,
	)
}

func TestPostgresStore_CreateProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	product := testProduct()

	mock.ExpectQuery(`INSERT INTO catalog.products`).
		WithArgs(
			product.SKU, product.Name, product.Description, product.Price,
			product.CategoryID, product.Available,
			product.ShopID, product.ShopName, product.ShopLat, product.ShopLng,
			pq.Array(product.Tags),
		).
		WillReturnRows(productRow(now, product, 1))

	created, err := store.CreateProduct(context.Background(), product)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "AB12CD34", created.SKU)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("499.90")))
	assert.Equal(t, []string{"leather", "sofa"}, created.Tags)
	assert.Equal(t, int64(7), created.ShopID)
	require.NotNil(t, created.ShopLat)
	assert.Equal(t, 51.5, *created.ShopLat)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProduct_SKUExists(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	pqErr := &pq.Error{Code: "23505", Constraint: "products_sku_key"}
	mock.ExpectQuery(`INSERT INTO catalog.products`).
		WillReturnError(pqErr)

	created, err := store.CreateProduct(context.Background(), testProduct())

	assert.ErrorIs(t, err, ErrProductSKUExists)
	assert.Nil(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByID(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM catalog.products\s+WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(productRow(now, testProduct(), 1))

	product, err := store.GetProductByID(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "Leather Sofa", product.Name)
	assert.Equal(t, "Oak & Iron", product.ShopName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByID_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM catalog.products`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	product, err := store.GetProductByID(context.Background(), 99)

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Nil(t, product)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByID_NullTags(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(productTestColumns).AddRow(
		int64(1), "AB12CD34", "Bare", "", "10.00", nil, true,
		int64(7), "Oak & Iron", nil, nil, nil, now, now,
	)
	mock.ExpectQuery(`SELECT (.+) FROM catalog.products`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	product, err := store.GetProductByID(context.Background(), 1)

	require.NoError(t, err)
	// NULL tags normalize to an empty slice, not nil.
	assert.NotNil(t, product.Tags)
	assert.Empty(t, product.Tags)
	assert.Nil(t, product.CategoryID)
	assert.Nil(t, product.ShopLat)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_WithFilters(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	minPrice := decimal.RequireFromString("100")
	params := ListProductsParams{
		Limit:       10,
		Offset:      0,
		SearchQuery: PtrTo("sofa"),
		CategoryID:  PtrTo(int64(3)),
		MinPrice:    &minPrice,
		Available:   PtrTo(true),
		SortBy:      "price",
		SortOrder:   "asc",
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM catalog.products WHERE \(name ILIKE \$1 OR description ILIKE \$2\) AND category_id = \$3 AND price >= \$4 AND available = \$5`).
		WithArgs("%sofa%", "%sofa%", int64(3), minPrice, true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(`SELECT (.+) FROM catalog.products WHERE (.+) ORDER BY price ASC LIMIT \$6 OFFSET \$7`).
		WithArgs("%sofa%", "%sofa%", int64(3), minPrice, true, 10, 0).
		WillReturnRows(productRow(now, testProduct(), 1))

	products, total, err := store.ListProducts(context.Background(), params)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, products, 1)
	assert.Equal(t, "Leather Sofa", products[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_RejectsUnknownSortColumn(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM catalog.products`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	// An unrecognized sort column falls back to updated_at DESC.
	mock.ExpectQuery(`ORDER BY updated_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 0).
		WillReturnRows(productRow(now, testProduct(), 1))

	_, _, err := store.ListProducts(context.Background(), ListProductsParams{
		Limit:  10,
		SortBy: "shop_id; DROP TABLE catalog.products",
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAvailableProducts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(productTestColumns).
		AddRow(int64(1), "AB12CD34", "Sofa", "", "499.90", nil, true,
			int64(7), "Oak & Iron", PtrTo(51.5), PtrTo(-0.12), []byte(`{}`), now, now).
		AddRow(int64(2), "EF56GH78", "Chair", "", "89.00", nil, true,
			int64(8), "Second Shop", nil, nil, []byte(`{}`), now, now)

	mock.ExpectQuery(`SELECT (.+) FROM catalog.products\s+WHERE available = TRUE ORDER BY updated_at DESC`).
		WillReturnRows(rows)

	products, err := store.ListAvailableProducts(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Sofa", products[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAvailableProducts_NameFilter(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`WHERE available = TRUE AND name ILIKE \$1 ORDER BY updated_at DESC`).
		WithArgs("%sofa%").
		WillReturnRows(productRow(now, testProduct(), 1))

	products, err := store.ListAvailableProducts(context.Background(), PtrTo("sofa"))

	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct_SnapshotColumnsNotSet(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	product := testProduct()
	product.ID = 1

	// The SET list carries only client-mutable columns.
	mock.ExpectQuery(`UPDATE catalog.products\s+SET sku = \$1, name = \$2, description = \$3, price = \$4, category_id = \$5,\s+available = \$6, tags = \$7, updated_at = CURRENT_TIMESTAMP\s+WHERE id = \$8`).
		WithArgs(
			product.SKU, product.Name, product.Description, product.Price,
			product.CategoryID, product.Available, pq.Array(product.Tags), product.ID,
		).
		WillReturnRows(productRow(now, product, 1))

	updated, err := store.UpdateProduct(context.Background(), product)

	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	product := testProduct()
	product.ID = 99
	mock.ExpectQuery(`UPDATE catalog.products`).
		WillReturnError(sql.ErrNoRows)

	updated, err := store.UpdateProduct(context.Background(), product)

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Nil(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteProduct_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM catalog.products WHERE id = $1;`)).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteProduct(context.Background(), 99)

	assert.ErrorIs(t, err, ErrProductNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProductImage(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	image := &domain.ProductImage{
		ProductID:  1,
		StorageKey: "key123.jpg",
		URL:        "/media/product_images/key123.jpg",
		AltText:    "A sofa",
	}

	rows := sqlmock.NewRows([]string{"id", "product_id", "storage_key", "url", "alt_text", "created_at"}).
		AddRow(int64(5), image.ProductID, image.StorageKey, image.URL, image.AltText, now)

	mock.ExpectQuery(`INSERT INTO catalog.product_images`).
		WithArgs(image.ProductID, image.StorageKey, image.URL, image.AltText).
		WillReturnRows(rows)

	created, err := store.CreateProductImage(context.Background(), image)

	require.NoError(t, err)
	assert.Equal(t, int64(5), created.ID)
	assert.Equal(t, "key123.jpg", created.StorageKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProductImage_ProductGone(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	pqErr := &pq.Error{Code: "23503", Constraint: "product_images_product_id_fkey"}
	mock.ExpectQuery(`INSERT INTO catalog.product_images`).
		WillReturnError(pqErr)

	created, err := store.CreateProductImage(context.Background(), &domain.ProductImage{ProductID: 99})

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Nil(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProductImages(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "product_id", "storage_key", "url", "alt_text", "created_at"}).
		AddRow(int64(1), int64(10), "a.jpg", "/media/product_images/a.jpg", "", now).
		AddRow(int64(2), int64(10), "b.jpg", "/media/product_images/b.jpg", "side view", now)

	mock.ExpectQuery(`SELECT id, product_id, storage_key, url, alt_text, created_at`).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	images, err := store.ListProductImages(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "a.jpg", images[0].StorageKey)
	assert.Equal(t, "side view", images[1].AltText)
	require.NoError(t, mock.ExpectationsWereMet())
}
