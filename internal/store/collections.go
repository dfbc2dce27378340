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

type CollectionRequest struct {
	Title string `json:"title"`
}

func (r CollectionRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return database.NewValidationError("title", "This field is required.", nil)
	}
	return nil
}

func CreateCollection(ctx context.Context, db *sql.DB, req CollectionRequest) (*models.Collection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	collection := &models.Collection{}

	err := db.QueryRowContext(ctx,
		`INSERT INTO collections (title, created_at, updated_at)
		 VALUES ($1, NOW(), NOW())
		 RETURNING id, title`,
		req.Title).Scan(&collection.ID, &collection.Title)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return collection, nil
}

func GetCollection(ctx context.Context, db *sql.DB, id int64) (*models.Collection, error) {
	collection := &models.Collection{}

	query := `
		SELECT c.id, c.title, COUNT(p.id)
		FROM collections c
		LEFT JOIN products p ON p.collection_id = c.id
		WHERE c.id = $1
		GROUP BY c.id, c.title`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&collection.ID,
		&collection.Title,
		&collection.ProductsCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}

	return collection, nil
}

func ListCollections(ctx context.Context, db *sql.DB) ([]models.Collection, error) {
	query := `
		SELECT c.id, c.title, COUNT(p.id)
		FROM collections c
		LEFT JOIN products p ON p.collection_id = c.id
		GROUP BY c.id, c.title
		ORDER BY c.id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	collections := []models.Collection{}
	for rows.Next() {
		var collection models.Collection
		if err := rows.Scan(&collection.ID, &collection.Title, &collection.ProductsCount); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, collection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return collections, nil
}

func UpdateCollection(ctx context.Context, db *sql.DB, id int64, req CollectionRequest) (*models.Collection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE collections SET title = $1, updated_at = NOW() WHERE id = $2`,
		req.Title, id)
	if err != nil {
		return nil, fmt.Errorf("update collection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, database.ErrCollectionNotFound
	}

	return GetCollection(ctx, db, id)
}

// DeleteCollection refuses to remove a collection that still has products.
func DeleteCollection(ctx context.Context, db *sql.DB, id int64) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var collectionID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM collections WHERE id = $1 FOR UPDATE`,
			id).Scan(&collectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrCollectionNotFound
			}
			return fmt.Errorf("lock collection: %w", err)
		}

		var products int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM products WHERE collection_id = $1`,
			id).Scan(&products)
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		if products > 0 {
			return database.ErrCollectionInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id); err != nil {
			if database.IsForeignKeyViolation(err) {
				return database.ErrCollectionInUse
			}
			return fmt.Errorf("delete collection: %w", err)
		}

		return nil
	})
}
