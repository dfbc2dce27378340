package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

type UpdateOrderRequest struct {
	PaymentStatus string `json:"payment_status"`
}

func (r UpdateOrderRequest) Validate() error {
	if !models.ValidPaymentStatus(r.PaymentStatus) {
		return database.NewValidationError("payment_status", fmt.Sprintf("%q is not a valid choice.", r.PaymentStatus), nil)
	}
	return nil
}

// OrderScope restricts order reads to one customer. The zero value reads all orders.
type OrderScope struct {
	CustomerID int64
}

func AllOrders() OrderScope {
	return OrderScope{}
}

func CustomerOrders(customerID int64) OrderScope {
	return OrderScope{CustomerID: customerID}
}

func (s OrderScope) restricted() bool {
	return s.CustomerID != 0
}

// GetOrder returns the order with its items. An order outside the scope is
// reported as not found.
func GetOrder(ctx context.Context, db *sql.DB, scope OrderScope, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, customer_id, placed_at, payment_status
		FROM orders
		WHERE id = $1`
	args := []any{id}
	if scope.restricted() {
		query += ` AND customer_id = $2`
		args = append(args, scope.CustomerID)
	}

	err := db.QueryRowContext(ctx, query, args...).Scan(
		&order.ID,
		&order.CustomerID,
		&order.PlacedAt,
		&order.PaymentStatus,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := loadOrderItems(ctx, db, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrders pages through orders newest first using a (placed_at, id) cursor.
func ListOrders(ctx context.Context, db *sql.DB, scope OrderScope, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, database.NewValidationError("cursor", "Invalid cursor.", err)
	}

	_, limit = normalizePage(1, limit)

	var conditions []string
	var args []any
	if cursorData != nil {
		args = append(args, cursorData.PlacedAt, cursorData.ID)
		conditions = append(conditions, fmt.Sprintf("(placed_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	if scope.restricted() {
		args = append(args, scope.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}

	query := `
		SELECT id, customer_id, placed_at, payment_status
		FROM orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY placed_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		order := &models.Order{}
		err := rows.Scan(
			&order.ID,
			&order.CustomerID,
			&order.PlacedAt,
			&order.PaymentStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := loadOrderItems(ctx, db, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			PlacedAt: lastOrder.PlacedAt,
			ID:       lastOrder.ID,
		})
	}

	items := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		items = append(items, *order)
	}

	return &CursorPage{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdatePaymentStatus is the only mutation an order accepts after checkout.
func UpdatePaymentStatus(ctx context.Context, db *sql.DB, id int64, req UpdateOrderRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1 WHERE id = $2`,
		req.PaymentStatus, id)
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, database.ErrOrderNotFound
	}

	return GetOrder(ctx, db, AllOrders(), id)
}

func DeleteOrder(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

func loadOrderItems(ctx context.Context, q database.Querier, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, order := range orders {
		order.Items = []models.OrderItem{}
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT oi.order_id, oi.id, oi.quantity, oi.unit_price, p.id, p.title, p.unit_price
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = ANY($1)
		 ORDER BY oi.order_id, oi.id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var item models.OrderItem
		err := rows.Scan(
			&orderID,
			&item.ID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Product.ID,
			&item.Product.Title,
			&item.Product.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if order, ok := byID[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}
