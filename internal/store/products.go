package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

var minUnitPrice = decimal.NewFromInt(1)

type CreateProductRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Slug         string          `json:"slug"`
	Inventory    int             `json:"inventory"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CollectionID int64           `json:"collection"`
}

func (r CreateProductRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return database.NewValidationError("title", "This field is required.", nil)
	}
	if strings.TrimSpace(r.Slug) == "" {
		return database.NewValidationError("slug", "This field is required.", nil)
	}
	if r.Inventory < 0 {
		return database.NewValidationError("inventory", "Ensure this value is greater than or equal to 0.", nil)
	}
	if r.UnitPrice.LessThan(minUnitPrice) {
		return database.NewValidationError("unit_price", "Ensure this value is greater than or equal to 1.", nil)
	}
	if r.CollectionID <= 0 {
		return database.NewValidationError("collection", "This field is required.", nil)
	}
	return nil
}

// UpdateProductRequest is a partial update; nil fields keep their current value.
type UpdateProductRequest struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	Slug         *string          `json:"slug"`
	Inventory    *int             `json:"inventory"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	CollectionID *int64           `json:"collection"`
}

func (r UpdateProductRequest) Validate() error {
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return database.NewValidationError("title", "This field may not be blank.", nil)
	}
	if r.Slug != nil && strings.TrimSpace(*r.Slug) == "" {
		return database.NewValidationError("slug", "This field may not be blank.", nil)
	}
	if r.Inventory != nil && *r.Inventory < 0 {
		return database.NewValidationError("inventory", "Ensure this value is greater than or equal to 0.", nil)
	}
	if r.UnitPrice != nil && r.UnitPrice.LessThan(minUnitPrice) {
		return database.NewValidationError("unit_price", "Ensure this value is greater than or equal to 1.", nil)
	}
	return nil
}

// Complete reports whether every field is set, as required for a full replace.
func (r UpdateProductRequest) Complete() error {
	switch {
	case r.Title == nil:
		return database.NewValidationError("title", "This field is required.", nil)
	case r.Slug == nil:
		return database.NewValidationError("slug", "This field is required.", nil)
	case r.Inventory == nil:
		return database.NewValidationError("inventory", "This field is required.", nil)
	case r.UnitPrice == nil:
		return database.NewValidationError("unit_price", "This field is required.", nil)
	case r.CollectionID == nil:
		return database.NewValidationError("collection", "This field is required.", nil)
	}
	return nil
}

// ProductFilter narrows and orders ListProducts. Zero values disable a filter.
type ProductFilter struct {
	CollectionID int64
	UnitPriceGT  *decimal.Decimal
	UnitPriceLT  *decimal.Decimal
	Search       string
	Ordering     string
	Page         int
	PageSize     int
}

var productOrderings = map[string]string{
	"unit_price":   "p.unit_price ASC, p.id ASC",
	"-unit_price":  "p.unit_price DESC, p.id DESC",
	"last_update":  "p.last_update ASC, p.id ASC",
	"-last_update": "p.last_update DESC, p.id DESC",
}

func ValidProductOrdering(ordering string) bool {
	_, ok := productOrderings[ordering]
	return ordering == "" || ok
}

const productColumns = `p.id, p.title, p.description, p.slug, p.inventory, p.unit_price, p.collection_id, p.last_update`

func scanProduct(row interface{ Scan(...any) error }, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Slug,
		&product.Inventory,
		&product.UnitPrice,
		&product.CollectionID,
		&product.LastUpdate,
	)
}

func CreateProduct(ctx context.Context, db *sql.DB, req CreateProductRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product := &models.Product{}

	query := `
		INSERT INTO products AS p (title, description, slug, inventory, unit_price, collection_id, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + productColumns

	err := scanProduct(db.QueryRowContext(ctx, query,
		req.Title, req.Description, req.Slug, req.Inventory, req.UnitPrice, req.CollectionID), product)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, invalidCollection()
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	err := scanProduct(db.QueryRowContext(ctx, query, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func UpdateProduct(ctx context.Context, db *sql.DB, id int64, req UpdateProductRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product := &models.Product{}

	query := `
		UPDATE products AS p
		SET title = COALESCE($2, p.title),
		    description = COALESCE($3, p.description),
		    slug = COALESCE($4, p.slug),
		    inventory = COALESCE($5, p.inventory),
		    unit_price = COALESCE($6, p.unit_price),
		    collection_id = COALESCE($7, p.collection_id),
		    last_update = NOW()
		WHERE p.id = $1
		RETURNING ` + productColumns

	err := scanProduct(db.QueryRowContext(ctx, query,
		id, req.Title, req.Description, req.Slug, req.Inventory, req.UnitPrice, req.CollectionID), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		if database.IsForeignKeyViolation(err) {
			return nil, invalidCollection()
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

// DeleteProduct refuses to remove a product that any order item still references.
// The product row is locked first so a concurrent checkout cannot add a
// reference between the check and the delete.
func DeleteProduct(ctx context.Context, db *sql.DB, id int64) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var productID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM products WHERE id = $1 FOR UPDATE`,
			id).Scan(&productID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}

		var references int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM order_items WHERE product_id = $1`,
			id).Scan(&references)
		if err != nil {
			return fmt.Errorf("count order items: %w", err)
		}
		if references > 0 {
			return database.ErrProductInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
			if database.IsForeignKeyViolation(err) {
				return database.ErrProductInUse
			}
			return fmt.Errorf("delete product: %w", err)
		}

		return nil
	})
}

func ListProducts(ctx context.Context, db *sql.DB, filter ProductFilter) (*OffsetPage, error) {
	var (
		conditions []string
		args       []any
	)
	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CollectionID > 0 {
		conditions = append(conditions, "p.collection_id = "+addArg(filter.CollectionID))
	}
	if filter.UnitPriceGT != nil {
		conditions = append(conditions, "p.unit_price > "+addArg(*filter.UnitPriceGT))
	}
	if filter.UnitPriceLT != nil {
		conditions = append(conditions, "p.unit_price < "+addArg(*filter.UnitPriceLT))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		placeholder := addArg("%" + escapeLike(search) + "%")
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE %s OR c.title ILIKE %s)", placeholder, placeholder))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	from := `FROM products p JOIN collections c ON c.id = p.collection_id ` + where

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	orderBy, ok := productOrderings[filter.Ordering]
	if !ok {
		orderBy = "p.id ASC"
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	limit := addArg(pageSize)
	offset := addArg((page - 1) * pageSize)

	query := `SELECT ` + productColumns + ` ` + from +
		` ORDER BY ` + orderBy + ` LIMIT ` + limit + ` OFFSET ` + offset

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}

func invalidCollection() error {
	return database.NewValidationError("collection", "Invalid pk - object does not exist.", database.ErrCollectionNotFound)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
