package members

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hdcn/ledenportaal/pkg/authz"
)

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a member store and ensures its table exists
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure members table: %w", err)
	}
	return s, nil
}

// ensureTable creates the members table and indexes if they don't exist.
// Column types are restricted to what both PostgreSQL and SQLite accept;
// timestamps are stored naive and always written in UTC.
func (s *PostgresStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS members (
		member_number VARCHAR(20) PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL,
		infix VARCHAR(20),
		last_name VARCHAR(100) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(30),
		street VARCHAR(255) NOT NULL,
		postal_code VARCHAR(10) NOT NULL,
		city VARCHAR(100) NOT NULL,
		region VARCHAR(100) NOT NULL,
		kind VARCHAR(30) NOT NULL,
		active BOOLEAN NOT NULL,
		joined_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_region ON members(region);
	CREATE INDEX IF NOT EXISTS idx_members_kind ON members(kind);
	CREATE INDEX IF NOT EXISTS idx_members_last_name ON members(last_name);
	`
	_, err := s.db.Exec(query)
	return err
}

// Create inserts a new member record. The membership number is the
// natural key and must be set by the caller; it is assigned by the club
// administration, not by the database.
func (s *PostgresStore) Create(ctx context.Context, member *Member) error {
	if member.MemberNumber == "" {
		return fmt.Errorf("membership number is required")
	}
	if member.Kind == "" {
		member.Kind = KindFull
	}

	now := time.Now().UTC()
	if member.JoinedAt.IsZero() {
		member.JoinedAt = now
	}
	member.CreatedAt = now
	member.UpdatedAt = now

	query := `
		INSERT INTO members (member_number, first_name, infix, last_name, email, phone,
		                     street, postal_code, city, region, kind, active,
		                     joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (member_number) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		member.MemberNumber, member.FirstName, nullable(member.Infix), member.LastName,
		member.Email, nullable(member.Phone), member.Street, member.PostalCode,
		member.City, member.Region, member.Kind, member.Active,
		member.JoinedAt, member.CreatedAt, member.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member %s: %w", member.MemberNumber, ErrDuplicate)
	}

	return nil
}

// Get retrieves a member by membership number
func (s *PostgresStore) Get(ctx context.Context, memberNumber string) (*Member, error) {
	query := `
		SELECT member_number, first_name, infix, last_name, email, phone,
		       street, postal_code, city, region, kind, active,
		       joined_at, created_at, updated_at
		FROM members
		WHERE member_number = $1
	`
	member, err := scanMember(s.db.QueryRowContext(ctx, query, memberNumber))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %s: %w", memberNumber, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// Update applies a partial update to a member
func (s *PostgresStore) Update(ctx context.Context, memberNumber string, updates *UpdateMemberRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if updates.FirstName != nil {
		set("first_name", *updates.FirstName)
	}
	if updates.Infix != nil {
		set("infix", nullable(*updates.Infix))
	}
	if updates.LastName != nil {
		set("last_name", *updates.LastName)
	}
	if updates.Email != nil {
		set("email", *updates.Email)
	}
	if updates.Phone != nil {
		set("phone", nullable(*updates.Phone))
	}
	if updates.Street != nil {
		set("street", *updates.Street)
	}
	if updates.PostalCode != nil {
		set("postal_code", *updates.PostalCode)
	}
	if updates.City != nil {
		set("city", *updates.City)
	}
	if updates.Region != nil {
		set("region", *updates.Region)
	}
	if updates.Kind != nil {
		set("kind", *updates.Kind)
	}
	if updates.Active != nil {
		set("active", *updates.Active)
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}
	set("updated_at", time.Now().UTC())

	args = append(args, memberNumber)
	query := fmt.Sprintf("UPDATE members SET %s WHERE member_number = $%d",
		strings.Join(setClauses, ", "), argPos)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member %s: %w", memberNumber, ErrNotFound)
	}

	return nil
}

// Delete removes a member record permanently. Deactivation is an
// Update of the active flag; Delete is for departures that must not
// remain in the administration.
func (s *PostgresStore) Delete(ctx context.Context, memberNumber string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE member_number = $1`, memberNumber)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member %s: %w", memberNumber, ErrNotFound)
	}

	return nil
}

// List returns members matching the filter, ordered by membership number
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Member, error) {
	whereClause, args, argPos := buildFilterClause(filter)

	query := `
		SELECT member_number, first_name, infix, last_name, email, phone,
		       street, postal_code, city, region, kind, active,
		       joined_at, created_at, updated_at
		FROM members` + whereClause + `
		ORDER BY member_number ASC`

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
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var result []*Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		result = append(result, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read members: %w", err)
	}

	return result, nil
}

// Count returns the number of members matching the filter, ignoring
// Limit and Offset
func (s *PostgresStore) Count(ctx context.Context, filter Filter) (int, error) {
	whereClause, args, _ := buildFilterClause(filter)

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members"+whereClause, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}

	return count, nil
}

// buildFilterClause renders the filter as a WHERE clause. It returns
// the clause (with a leading space, empty when unfiltered), its
// arguments, and the next free placeholder position.
func buildFilterClause(filter Filter) (string, []interface{}, int) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if regions := regionFilter(filter.Regions); len(regions) > 0 {
		placeholders := make([]string, len(regions))
		for i, region := range regions {
			placeholders[i] = fmt.Sprintf("$%d", argPos)
			args = append(args, string(region))
			argPos++
		}
		conditions = append(conditions, fmt.Sprintf("region IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argPos))
		args = append(args, filter.Kind)
		argPos++
	}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argPos))
		args = append(args, *filter.Active)
		argPos++
	}

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf(
			"(member_number LIKE $%d OR LOWER(last_name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(city) LIKE $%d)",
			argPos, argPos+1, argPos+2, argPos+3))
		args = append(args, "%"+filter.Search+"%", pattern, pattern, pattern)
		argPos += 4
	}

	if len(conditions) == 0 {
		return "", args, argPos
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, argPos
}

// regionFilter drops the region restriction when the wildcard is
// present, so accessible-region sets from the evaluator can be passed
// through unchanged.
func regionFilter(regions []authz.Region) []authz.Region {
	for _, region := range regions {
		if region == authz.RegionAll {
			return nil
		}
	}
	return regions
}

// nullable maps an empty string to NULL
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(row rowScanner) (*Member, error) {
	member := &Member{}
	var infix, phone sql.NullString
	if err := row.Scan(
		&member.MemberNumber, &member.FirstName, &infix, &member.LastName,
		&member.Email, &phone, &member.Street, &member.PostalCode,
		&member.City, &member.Region, &member.Kind, &member.Active,
		&member.JoinedAt, &member.CreatedAt, &member.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if infix.Valid {
		member.Infix = infix.String
	}
	if phone.Valid {
		member.Phone = phone.String
	}
	return member, nil
}
