package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// UpdateCustomerRequest is a partial update; nil fields keep their current value.
type UpdateCustomerRequest struct {
	Phone      *string      `json:"phone"`
	BirthDate  *models.Date `json:"birth_date"`
	Membership *string      `json:"membership"`
}

func (r UpdateCustomerRequest) Validate() error {
	if r.Membership != nil && !models.ValidMembership(*r.Membership) {
		return database.NewValidationError("membership", fmt.Sprintf("%q is not a valid choice.", *r.Membership), nil)
	}
	return nil
}

const customerColumns = `id, user_id, phone, birth_date, membership`

func scanCustomer(row interface{ Scan(...any) error }, customer *models.Customer) error {
	return row.Scan(
		&customer.ID,
		&customer.UserID,
		&customer.Phone,
		&customer.BirthDate,
		&customer.Membership,
	)
}

// GetOrCreateCustomer returns the customer for userID, creating it on first
// access. The insert relies on the unique user_id constraint, so concurrent
// first calls for the same user converge on a single row.
func GetOrCreateCustomer(ctx context.Context, q database.Querier, userID int64) (*models.Customer, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO customers (user_id, membership)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, models.MembershipBronze)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	customer := &models.Customer{}
	err = scanCustomer(q.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE user_id = $1`,
		userID), customer)
	if err != nil {
		return nil, fmt.Errorf("get customer by user: %w", err)
	}

	return customer, nil
}

func GetCustomer(ctx context.Context, db *sql.DB, id int64) (*models.Customer, error) {
	customer := &models.Customer{}

	err := scanCustomer(db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`,
		id), customer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}

func UpdateCustomer(ctx context.Context, db *sql.DB, id int64, req UpdateCustomerRequest) (*models.Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	customer := &models.Customer{}

	err := scanCustomer(db.QueryRowContext(ctx,
		`UPDATE customers
		 SET phone = COALESCE($2, phone),
		     birth_date = COALESCE($3, birth_date),
		     membership = COALESCE($4, membership)
		 WHERE id = $1
		 RETURNING `+customerColumns,
		id, req.Phone, req.BirthDate, req.Membership), customer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("update customer: %w", err)
	}

	return customer, nil
}

func ListCustomers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count customers: %w", err)
	}

	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	rows, err := db.QueryContext(ctx,
		`SELECT `+customerColumns+`
		 FROM customers
		 ORDER BY id
		 LIMIT $1 OFFSET $2`,
		pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var customer models.Customer
		if err := scanCustomer(rows, &customer); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(customers, total, page, pageSize), nil
}
