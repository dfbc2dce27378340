package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

type ReviewRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r ReviewRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return database.NewValidationError("name", "This field is required.", nil)
	}
	if strings.TrimSpace(r.Description) == "" {
		return database.NewValidationError("description", "This field is required.", nil)
	}
	return nil
}

// UpdateReviewRequest is a partial update; nil fields keep their current value.
type UpdateReviewRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (r UpdateReviewRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return database.NewValidationError("name", "This field may not be blank.", nil)
	}
	if r.Description != nil && strings.TrimSpace(*r.Description) == "" {
		return database.NewValidationError("description", "This field may not be blank.", nil)
	}
	return nil
}

func CreateReview(ctx context.Context, db *sql.DB, productID int64, req ReviewRequest) (*models.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	review := &models.Review{}

	err := db.QueryRowContext(ctx,
		`INSERT INTO reviews (product_id, name, description, date)
		 VALUES ($1, $2, $3, CURRENT_DATE)
		 RETURNING id, product_id, name, description, date`,
		productID, req.Name, req.Description).Scan(
		&review.ID,
		&review.ProductID,
		&review.Name,
		&review.Description,
		&review.Date,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	return review, nil
}

func GetReview(ctx context.Context, db *sql.DB, productID, id int64) (*models.Review, error) {
	review := &models.Review{}

	err := db.QueryRowContext(ctx,
		`SELECT id, product_id, name, description, date
		 FROM reviews
		 WHERE id = $1 AND product_id = $2`,
		id, productID).Scan(
		&review.ID,
		&review.ProductID,
		&review.Name,
		&review.Description,
		&review.Date,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrReviewNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	return review, nil
}

func ListReviews(ctx context.Context, db *sql.DB, productID int64) ([]models.Review, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, name, description, date
		 FROM reviews
		 WHERE product_id = $1
		 ORDER BY date DESC, id DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var review models.Review
		err := rows.Scan(
			&review.ID,
			&review.ProductID,
			&review.Name,
			&review.Description,
			&review.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reviews, nil
}

func UpdateReview(ctx context.Context, db *sql.DB, productID, id int64, req UpdateReviewRequest) (*models.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	review := &models.Review{}

	err := db.QueryRowContext(ctx,
		`UPDATE reviews
		 SET name = COALESCE($3, name),
		     description = COALESCE($4, description)
		 WHERE id = $1 AND product_id = $2
		 RETURNING id, product_id, name, description, date`,
		id, productID, req.Name, req.Description).Scan(
		&review.ID,
		&review.ProductID,
		&review.Name,
		&review.Description,
		&review.Date,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrReviewNotFound
		}
		return nil, fmt.Errorf("update review: %w", err)
	}

	return review, nil
}

func DeleteReview(ctx context.Context, db *sql.DB, productID, id int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM reviews WHERE id = $1 AND product_id = $2`,
		id, productID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrReviewNotFound
	}

	return nil
}
