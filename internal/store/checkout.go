package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

type CheckoutRequest struct {
	CartID uuid.UUID `json:"cart_id"`
}

// Checkout converts the cart into an order for the customer behind userID and
// deletes the cart, all in one transaction.
//
// The cart row is locked FOR UPDATE before its items are read. A second
// checkout of the same cart blocks on that lock and, once the first commits,
// finds the cart gone and fails with ErrCartNotFound instead of producing a
// duplicate order. Each order item copies the product's unit price at this
// instant, so later price changes never touch the order.
func Checkout(ctx context.Context, db *sql.DB, userID int64, req CheckoutRequest) (*models.Order, error) {
	if req.CartID == uuid.Nil {
		return nil, database.NewValidationError("cart_id", "This field is required.", nil)
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := lockCart(ctx, tx, req.CartID, "FOR UPDATE"); err != nil {
			if errors.Is(err, database.ErrCartNotFound) {
				return database.NewValidationError("cart_id", "No cart with the given ID was found.", err)
			}
			return err
		}

		cartItems, err := listCartItems(ctx, tx, req.CartID)
		if err != nil {
			return err
		}
		if len(cartItems) == 0 {
			return database.NewValidationError("cart_id", "The cart is empty.", database.ErrCartEmpty)
		}

		customer, err := GetOrCreateCustomer(ctx, tx, userID)
		if err != nil {
			return err
		}

		order = &models.Order{
			CustomerID:    customer.ID,
			PaymentStatus: models.PaymentStatusUnpaid,
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (customer_id, placed_at, payment_status)
			 VALUES ($1, NOW(), $2)
			 RETURNING id, placed_at`,
			order.CustomerID, order.PaymentStatus).Scan(&order.ID, &order.PlacedAt)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		order.Items, err = insertOrderItems(ctx, tx, order.ID, cartItems)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, req.CartID)
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
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// insertOrderItems writes one order item per cart line in a single statement.
func insertOrderItems(ctx context.Context, tx *sql.Tx, orderID int64, cartItems []models.CartItem) ([]models.OrderItem, error) {
	values := make([]string, 0, len(cartItems))
	args := make([]any, 0, len(cartItems)*4)
	items := make([]models.OrderItem, 0, len(cartItems))
	byProduct := make(map[int64]int, len(cartItems))

	for i, cartItem := range cartItems {
		n := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4))
		args = append(args, orderID, cartItem.Product.ID, cartItem.Quantity, cartItem.Product.UnitPrice)

		byProduct[cartItem.Product.ID] = i
		items = append(items, models.OrderItem{
			Product:   cartItem.Product,
			UnitPrice: cartItem.Product.UnitPrice,
			Quantity:  cartItem.Quantity,
		})
	}

	rows, err := tx.QueryContext(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		 VALUES `+strings.Join(values, ", ")+`
		 RETURNING id, product_id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("create order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, productID int64
		if err := rows.Scan(&id, &productID); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if i, ok := byProduct[productID]; ok {
			items[i].ID = id
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("create order items: %w", err)
	}

	return items, nil
}
