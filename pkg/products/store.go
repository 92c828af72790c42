package products

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a product store and ensures its table exists
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure products table: %w", err)
	}
	return s, nil
}

// Column types stay within what both PostgreSQL and SQLite accept;
// timestamps are stored naive and always written in UTC.
func (s *PostgresStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		price_cents BIGINT NOT NULL,
		category VARCHAR(100) NOT NULL,
		available BOOLEAN NOT NULL,
		stock INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	`
	_, err := s.db.Exec(query)
	return err
}

// Create inserts a new product, assigning an ID when none is given
func (s *PostgresStore) Create(ctx context.Context, product *Product) error {
	if product.Name == "" {
		return fmt.Errorf("product name is required")
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	query := `
		INSERT INTO products (id, name, description, price_cents, category, available, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		product.ID, product.Name, nullable(product.Description), product.PriceCents,
		product.Category, product.Available, product.Stock,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product %s: %w", product.ID, ErrDuplicate)
	}

	return nil
}

// Get retrieves a product by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Product, error) {
	query := `
		SELECT id, name, description, price_cents, category, available, stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	product := &Product{}
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID, &product.Name, &description, &product.PriceCents,
		&product.Category, &product.Available, &product.Stock,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if description.Valid {
		product.Description = description.String
	}

	return product, nil
}

// Update applies a partial update to a product
func (s *PostgresStore) Update(ctx context.Context, id string, updates *UpdateProductRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if updates.Name != nil {
		set("name", *updates.Name)
	}
	if updates.Description != nil {
		set("description", nullable(*updates.Description))
	}
	if updates.PriceCents != nil {
		set("price_cents", *updates.PriceCents)
	}
	if updates.Category != nil {
		set("category", *updates.Category)
	}
	if updates.Available != nil {
		set("available", *updates.Available)
	}
	if updates.Stock != nil {
		set("stock", *updates.Stock)
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}
	set("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	return nil
}

// Delete removes a product
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	return nil
}

// List returns products matching the filter, ordered by category and
// name
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Product, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argPos))
		args = append(args, filter.Category)
		argPos++
	}
	if filter.Available != nil {
		conditions = append(conditions, fmt.Sprintf("available = $%d", argPos))
		args = append(args, *filter.Available)
		argPos++
	}

	query := `
		SELECT id, name, description, price_cents, category, available, stock, created_at, updated_at
		FROM products`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY category ASC, name ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
		argPos++
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argPos)
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var result []*Product
	for rows.Next() {
		product := &Product{}
		var description sql.NullString
		if err := rows.Scan(
			&product.ID, &product.Name, &description, &product.PriceCents,
			&product.Category, &product.Available, &product.Stock,
			&product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if description.Valid {
			product.Description = description.String
		}
		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	return result, nil
}

// nullable maps an empty string to NULL
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
