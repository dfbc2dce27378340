package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

type AddCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (r AddCartItemRequest) Validate() error {
	if r.ProductID <= 0 {
		return database.NewValidationError("product_id", "This field is required.", nil)
	}
	return validateQuantity(r.Quantity)
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (r UpdateCartItemRequest) Validate() error {
	return validateQuantity(r.Quantity)
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return database.NewValidationError("quantity", "Ensure this value is greater than or equal to 1.", nil)
	}
	return nil
}

func CreateCart(ctx context.Context, db *sql.DB) (*models.Cart, error) {
	cart := &models.Cart{
		ID:         uuid.New(),
		Items:      []models.CartItem{},
		TotalPrice: decimal.Zero,
	}

	err := db.QueryRowContext(ctx,
		`INSERT INTO carts (id, created_at) VALUES ($1, NOW()) RETURNING created_at`,
		cart.ID).Scan(&cart.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	return cart, nil
}

// GetCart returns the cart with its items; the total is recomputed from the
// current product prices on every call.
func GetCart(ctx context.Context, db *sql.DB, id uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{ID: id}

	err := db.QueryRowContext(ctx,
		`SELECT created_at FROM carts WHERE id = $1`,
		id).Scan(&cart.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	items, err := listCartItems(ctx, db, id)
	if err != nil {
		return nil, err
	}

	cart.Items = items
	cart.TotalPrice = CartTotal(items)

	return cart, nil
}

func DeleteCart(ctx context.Context, db *sql.DB, id uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrCartNotFound
	}

	return nil
}

func CartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// AddCartItem adds a product to the cart. A product already in the cart has
// its quantity increased instead of getting a second line. The cart row is
// share-locked so the add cannot interleave with a checkout of the same cart.
func AddCartItem(ctx context.Context, db *sql.DB, cartID uuid.UUID, req AddCartItemRequest) (*models.CartItem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var item *models.CartItem

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := lockCart(ctx, tx, cartID, "FOR SHARE"); err != nil {
			return err
		}

		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`,
			req.ProductID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check product exists: %w", err)
		}
		if !exists {
			return database.NewValidationError("product_id", "No product with the given ID was found.", database.ErrProductNotFound)
		}

		var itemID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (cart_id, product_id)
			 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			 RETURNING id`,
			cartID, req.ProductID, req.Quantity).Scan(&itemID)
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}

		item, err = getCartItem(ctx, tx, cartID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

func UpdateCartItem(ctx context.Context, db *sql.DB, cartID uuid.UUID, itemID int64, req UpdateCartItemRequest) (*models.CartItem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE id = $2 AND cart_id = $3`,
		req.Quantity, itemID, cartID)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, database.ErrCartItemNotFound
	}

	return getCartItem(ctx, db, cartID, itemID)
}

func DeleteCartItem(ctx context.Context, db *sql.DB, cartID uuid.UUID, itemID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`,
		itemID, cartID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrCartItemNotFound
	}

	return nil
}

func GetCartItem(ctx context.Context, db *sql.DB, cartID uuid.UUID, itemID int64) (*models.CartItem, error) {
	return getCartItem(ctx, db, cartID, itemID)
}

func ListCartItems(ctx context.Context, db *sql.DB, cartID uuid.UUID) ([]models.CartItem, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM carts WHERE id = $1)`,
		cartID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check cart exists: %w", err)
	}
	if !exists {
		return nil, database.ErrCartNotFound
	}

	return listCartItems(ctx, db, cartID)
}

func lockCart(ctx context.Context, tx *sql.Tx, cartID uuid.UUID, mode string) error {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE id = $1 `+mode,
		cartID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrCartNotFound
		}
		return fmt.Errorf("lock cart: %w", err)
	}
	return nil
}

func getCartItem(ctx context.Context, q database.Querier, cartID uuid.UUID, itemID int64) (*models.CartItem, error) {
	item := &models.CartItem{}

	err := q.QueryRowContext(ctx,
		`SELECT ci.id, ci.quantity, p.id, p.title, p.unit_price
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.id = $1 AND ci.cart_id = $2`,
		itemID, cartID).Scan(
		&item.ID,
		&item.Quantity,
		&item.Product.ID,
		&item.Product.Title,
		&item.Product.UnitPrice,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	item.TotalPrice = models.LineTotal(item.Product.UnitPrice, item.Quantity)

	return item, nil
}

func listCartItems(ctx context.Context, q database.Querier, cartID uuid.UUID) ([]models.CartItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ci.id, ci.quantity, p.id, p.title, p.unit_price
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.id`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		err := rows.Scan(
			&item.ID,
			&item.Quantity,
			&item.Product.ID,
			&item.Product.Title,
			&item.Product.UnitPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.TotalPrice = models.LineTotal(item.Product.UnitPrice, item.Quantity)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}
