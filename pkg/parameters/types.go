package parameters

import (
	"context"
	"errors"
	"time"
)

// Well-known parameter categories
const (
	CategoryRegions         = "regions"
	CategoryMembershipKinds = "membership_kinds"
	CategoryExport          = "export"
)

var (
	// ErrNotFound is returned when no parameter exists for a
	// (category, name) pair
	ErrNotFound = errors.New("parameter not found")
	// ErrDuplicate is returned when a (category, name) pair is already
	// taken
	ErrDuplicate = errors.New("parameter already exists")
)

// Parameter represents one configuration entry. Value is always a
// string; consumers parse it as needed.
type Parameter struct {
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	SortOrder   int       `json:"sort_order"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateParameterRequest represents a partial parameter update; nil
// fields are left unchanged.
type UpdateParameterRequest struct {
	Value       *string `json:"value,omitempty"`
	Description *string `json:"description,omitempty"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}

// Store defines parameter persistence operations
type Store interface {
	Create(ctx context.Context, param *Parameter) error
	Get(ctx context.Context, category, name string) (*Parameter, error)
	Update(ctx context.Context, category, name string, updates *UpdateParameterRequest) error
	Delete(ctx context.Context, category, name string) error
	ListCategory(ctx context.Context, category string) ([]*Parameter, error)
	Categories(ctx context.Context) ([]string, error)
	Regions(ctx context.Context) ([]string, error)
}
