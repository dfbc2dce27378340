package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

var orderItemColumns = []string{"order_id", "id", "quantity", "unit_price", "product_id", "title", "product_unit_price"}

func TestGetOrderScopedToCustomer(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM orders\s+WHERE id = \$1 AND customer_id = \$2`).
		WithArgs(int64(9), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "placed_at", "payment_status"}))

	_, err := GetOrder(context.Background(), db, CustomerOrders(7), 9)
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetOrderLoadsItems(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM orders\s+WHERE id = \$1$`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "placed_at", "payment_status"}).
			AddRow(int64(9), int64(7), time.Now(), models.PaymentStatusUnpaid))
	mock.ExpectQuery(`WHERE oi.order_id = ANY\(\$1\)`).
		WithArgs("{9}").
		WillReturnRows(sqlmock.NewRows(orderItemColumns).
			AddRow(int64(9), int64(1), 2, "10.00", int64(3), "Coffee", "20.00"))

	order, err := GetOrder(context.Background(), db, AllOrders(), 9)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}

	if len(order.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(order.Items))
	}
	if order.Items[0].UnitPrice.String() != "10" {
		t.Errorf("Expected snapshot price 10, got %s", order.Items[0].UnitPrice)
	}
	if order.Items[0].Product.UnitPrice.String() != "20" {
		t.Errorf("Expected current product price 20, got %s", order.Items[0].Product.UnitPrice)
	}
}

func TestListOrdersScopedAndPaged(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM orders WHERE customer_id = \$1 ORDER BY placed_at DESC, id DESC LIMIT \$2`).
		WithArgs(int64(7), 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "placed_at", "payment_status"}).
			AddRow(int64(3), int64(7), now, models.PaymentStatusUnpaid).
			AddRow(int64(2), int64(7), now.Add(-time.Minute), models.PaymentStatusComplete).
			AddRow(int64(1), int64(7), now.Add(-2*time.Minute), models.PaymentStatusUnpaid))
	mock.ExpectQuery(`WHERE oi.order_id = ANY\(\$1\)`).
		WithArgs("{3,2}").
		WillReturnRows(sqlmock.NewRows(orderItemColumns))

	page, err := ListOrders(context.Background(), db, CustomerOrders(7), "", 2)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}

	orders := page.Items.([]models.Order)
	if len(orders) != 2 {
		t.Fatalf("Expected 2 orders, got %d", len(orders))
	}
	if !page.HasMore || page.NextCursor == "" {
		t.Errorf("Expected another page, got %+v", page)
	}

	cursor, err := DecodeCursor(page.NextCursor)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if cursor.ID != 2 {
		t.Errorf("Expected cursor at order 2, got %d", cursor.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListOrdersFirstPageHasNoCursorBound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM orders ORDER BY placed_at DESC, id DESC LIMIT \$1`).
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "placed_at", "payment_status"}).
			AddRow(int64(9), int64(7), time.Now().Add(2*time.Hour), models.PaymentStatusUnpaid))
	mock.ExpectQuery(`WHERE oi.order_id = ANY\(\$1\)`).
		WithArgs("{9}").
		WillReturnRows(sqlmock.NewRows(orderItemColumns))

	page, err := ListOrders(context.Background(), db, AllOrders(), "", 10)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if orders := page.Items.([]models.Order); len(orders) != 1 {
		t.Fatalf("Expected the order placed ahead of the app clock, got %d orders", len(orders))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListOrdersNextPageUsesCursor(t *testing.T) {
	db, mock := newMock(t)
	placedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cursor := EncodeCursor(OrderCursor{PlacedAt: placedAt, ID: 5})

	mock.ExpectQuery(`WHERE \(placed_at, id\) < \(\$1, \$2\) AND customer_id = \$3 ORDER BY placed_at DESC, id DESC LIMIT \$4`).
		WithArgs(sqlmock.AnyArg(), int64(5), int64(7), 11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "placed_at", "payment_status"}))

	page, err := ListOrders(context.Background(), db, CustomerOrders(7), cursor, 10)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if page.HasMore {
		t.Errorf("Expected last page, got %+v", page)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListOrdersRejectsBadCursor(t *testing.T) {
	db, _ := newMock(t)

	_, err := ListOrders(context.Background(), db, AllOrders(), "%%%", 10)

	var vErr *database.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "cursor" {
		t.Fatalf("Expected cursor validation error, got %v", err)
	}
}

func TestUpdatePaymentStatusValidation(t *testing.T) {
	db, mock := newMock(t)

	_, err := UpdatePaymentStatus(context.Background(), db, 1, UpdateOrderRequest{PaymentStatus: "refunded"})

	var vErr *database.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "payment_status" {
		t.Fatalf("Expected payment_status validation error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteOrderNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM orders WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := DeleteOrder(context.Background(), db, 4); !errors.Is(err, database.ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestGetOrCreateCustomerIsIdempotent(t *testing.T) {
	db, mock := newMock(t)

	for i := 0; i < 2; i++ {
		mock.ExpectExec(`INSERT INTO customers \(user_id, membership\)\s+VALUES \(\$1, \$2\)\s+ON CONFLICT \(user_id\) DO NOTHING`).
			WithArgs(int64(42), models.MembershipBronze).
			WillReturnResult(sqlmock.NewResult(0, int64(1-i)))
		mock.ExpectQuery(selectCustomerSQL).
			WithArgs(int64(42)).
			WillReturnRows(customerRows(42))
	}

	first, err := GetOrCreateCustomer(context.Background(), db, 42)
	if err != nil {
		t.Fatalf("first GetOrCreateCustomer: %v", err)
	}
	second, err := GetOrCreateCustomer(context.Background(), db, 42)
	if err != nil {
		t.Fatalf("second GetOrCreateCustomer: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("Expected the same customer, got %d and %d", first.ID, second.ID)
	}
	if first.BirthDate != nil {
		t.Errorf("Expected no birth date, got %v", first.BirthDate)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateCustomerRejectsUnknownMembership(t *testing.T) {
	db, _ := newMock(t)
	membership := "P"

	_, err := UpdateCustomer(context.Background(), db, 1, UpdateCustomerRequest{Membership: &membership})

	var vErr *database.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "membership" {
		t.Fatalf("Expected membership validation error, got %v", err)
	}
}
