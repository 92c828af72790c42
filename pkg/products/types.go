package products

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no product exists for an ID
	ErrNotFound = errors.New("product not found")
	// ErrDuplicate is returned when a product ID is already taken
	ErrDuplicate = errors.New("product already exists")
)

// Product represents an article in the club shop
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Category    string    `json:"category"`
	Available   bool      `json:"available"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FormattedPrice renders the price in the Dutch notation used on the
// order forms, e.g. "€ 12,50".
func (p *Product) FormattedPrice() string {
	return fmt.Sprintf("€ %d,%02d", p.PriceCents/100, p.PriceCents%100)
}

// UpdateProductRequest represents a partial product update; nil fields
// are left unchanged.
type UpdateProductRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	PriceCents  *int64  `json:"price_cents,omitempty"`
	Category    *string `json:"category,omitempty"`
	Available   *bool   `json:"available,omitempty"`
	Stock       *int    `json:"stock,omitempty"`
}

// Filter narrows List results; the zero value matches every product
type Filter struct {
	Category  string
	Available *bool
	Limit     int
	Offset    int
}

// Store defines product persistence operations
type Store interface {
	Create(ctx context.Context, product *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	Update(ctx context.Context, id string, updates *UpdateProductRequest) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]*Product, error)
}
