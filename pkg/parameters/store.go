package parameters

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a parameter store and ensures its table
// exists
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure parameters table: %w", err)
	}
	return s, nil
}

// Column types stay within what both PostgreSQL and SQLite accept;
// timestamps are stored naive and always written in UTC.
func (s *PostgresStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS parameters (
		category VARCHAR(100) NOT NULL,
		name VARCHAR(100) NOT NULL,
		value TEXT NOT NULL,
		description TEXT,
		sort_order INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (category, name)
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Create inserts a new parameter
func (s *PostgresStore) Create(ctx context.Context, param *Parameter) error {
	if param.Category == "" || param.Name == "" {
		return fmt.Errorf("parameter category and name are required")
	}
	param.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO parameters (category, name, value, description, sort_order, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (category, name) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		param.Category, param.Name, param.Value, nullable(param.Description),
		param.SortOrder, param.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create parameter: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("parameter %s/%s: %w", param.Category, param.Name, ErrDuplicate)
	}

	return nil
}

// Get retrieves a parameter by category and name
func (s *PostgresStore) Get(ctx context.Context, category, name string) (*Parameter, error) {
	query := `
		SELECT category, name, value, description, sort_order, updated_at
		FROM parameters
		WHERE category = $1 AND name = $2
	`
	param := &Parameter{}
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, query, category, name).Scan(
		&param.Category, &param.Name, &param.Value, &description,
		&param.SortOrder, &param.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("parameter %s/%s: %w", category, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter: %w", err)
	}
	if description.Valid {
		param.Description = description.String
	}

	return param, nil
}

// Update applies a partial update to a parameter
func (s *PostgresStore) Update(ctx context.Context, category, name string, updates *UpdateParameterRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if updates.Value != nil {
		set("value", *updates.Value)
	}
	if updates.Description != nil {
		set("description", nullable(*updates.Description))
	}
	if updates.SortOrder != nil {
		set("sort_order", *updates.SortOrder)
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}
	set("updated_at", time.Now().UTC())

	args = append(args, category, name)
	query := fmt.Sprintf("UPDATE parameters SET %s WHERE category = $%d AND name = $%d",
		strings.Join(setClauses, ", "), argPos, argPos+1)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update parameter: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("parameter %s/%s: %w", category, name, ErrNotFound)
	}

	return nil
}

// Delete removes a parameter
func (s *PostgresStore) Delete(ctx context.Context, category, name string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM parameters WHERE category = $1 AND name = $2`, category, name)
	if err != nil {
		return fmt.Errorf("failed to delete parameter: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("parameter %s/%s: %w", category, name, ErrNotFound)
	}

	return nil
}

// ListCategory returns the parameters of one category in display order
func (s *PostgresStore) ListCategory(ctx context.Context, category string) ([]*Parameter, error) {
	query := `
		SELECT category, name, value, description, sort_order, updated_at
		FROM parameters
		WHERE category = $1
		ORDER BY sort_order ASC, name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list parameters: %w", err)
	}
	defer rows.Close()

	var result []*Parameter
	for rows.Next() {
		param := &Parameter{}
		var description sql.NullString
		if err := rows.Scan(
			&param.Category, &param.Name, &param.Value, &description,
			&param.SortOrder, &param.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		if description.Valid {
			param.Description = description.String
		}
		result = append(result, param)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}

	return result, nil
}

// Categories returns the distinct categories in use
func (s *PostgresStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM parameters ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}

	return categories, nil
}

// Regions returns the canonical region list in display order. This is
// the list the frontend offers and the region identifiers member
// records carry.
func (s *PostgresStore) Regions(ctx context.Context) ([]string, error) {
	params, err := s.ListCategory(ctx, CategoryRegions)
	if err != nil {
		return nil, err
	}
	regions := make([]string, len(params))
	for i, param := range params {
		regions[i] = param.Value
	}
	return regions, nil
}

// EnsureDefaults seeds the well-known categories, skipping entries that
// already exist. Safe to run on every process start.
func (s *PostgresStore) EnsureDefaults(ctx context.Context) error {
	query := `
		INSERT INTO parameters (category, name, value, description, sort_order, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (category, name) DO NOTHING
	`
	now := time.Now().UTC()
	for _, param := range DefaultParameters() {
		_, err := s.db.ExecContext(ctx, query,
			param.Category, param.Name, param.Value, nullable(param.Description),
			param.SortOrder, now,
		)
		if err != nil {
			return fmt.Errorf("failed to seed parameter %s/%s: %w", param.Category, param.Name, err)
		}
	}
	return nil
}

// nullable maps an empty string to NULL
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
