package members

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hdcn/ledenportaal/pkg/authz"
)

// MembershipKind classifies how someone belongs to the club. The
// canonical list is configuration data (pkg/parameters); these
// constants cover the kinds the portal itself branches on.
type MembershipKind string

const (
	KindFull     MembershipKind = "lid"
	KindFamily   MembershipKind = "gezinslid"
	KindDonor    MembershipKind = "donateur"
	KindHonorary MembershipKind = "erelid"
)

var (
	// ErrNotFound is returned when no member exists for a membership number
	ErrNotFound = errors.New("member not found")
	// ErrDuplicate is returned when a membership number is already taken
	ErrDuplicate = errors.New("member already exists")
)

// Member represents a club member record
type Member struct {
	MemberNumber string         `json:"member_number"`
	FirstName    string         `json:"first_name"`
	Infix        string         `json:"infix,omitempty"`
	LastName     string         `json:"last_name"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	Street       string         `json:"street"`
	PostalCode   string         `json:"postal_code"`
	City         string         `json:"city"`
	Region       string         `json:"region"`
	Kind         MembershipKind `json:"kind"`
	Active       bool           `json:"active"`
	JoinedAt     time.Time      `json:"joined_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// FullName returns the display name including the infix ("van der",
// "de") when present.
func (m *Member) FullName() string {
	parts := []string{m.FirstName}
	if m.Infix != "" {
		parts = append(parts, m.Infix)
	}
	parts = append(parts, m.LastName)
	return strings.Join(parts, " ")
}

// UpdateMemberRequest represents a partial member update; nil fields
// are left unchanged.
type UpdateMemberRequest struct {
	FirstName  *string         `json:"first_name,omitempty"`
	Infix      *string         `json:"infix,omitempty"`
	LastName   *string         `json:"last_name,omitempty"`
	Email      *string         `json:"email,omitempty"`
	Phone      *string         `json:"phone,omitempty"`
	Street     *string         `json:"street,omitempty"`
	PostalCode *string         `json:"postal_code,omitempty"`
	City       *string         `json:"city,omitempty"`
	Region     *string         `json:"region,omitempty"`
	Kind       *MembershipKind `json:"kind,omitempty"`
	Active     *bool           `json:"active,omitempty"`
}

// Filter narrows List and Count results. The zero value matches every
// member.
type Filter struct {
	// Regions restricts results to the given region identifiers.
	// Empty means no restriction; the wildcard region "all" anywhere
	// in the slice lifts the restriction, so a caller can pass an
	// accessible-region set from the evaluator verbatim.
	Regions []authz.Region
	Kind    MembershipKind
	Active  *bool
	// Search matches membership number, last name, email and city,
	// case-insensitively.
	Search string
	// Limit bounds the result size; zero means unbounded. Offset is
	// applied only together with Limit.
	Limit  int
	Offset int
}

// Store defines member persistence operations
type Store interface {
	Create(ctx context.Context, member *Member) error
	Get(ctx context.Context, memberNumber string) (*Member, error)
	Update(ctx context.Context, memberNumber string, updates *UpdateMemberRequest) error
	Delete(ctx context.Context, memberNumber string) error
	List(ctx context.Context, filter Filter) ([]*Member, error)
	Count(ctx context.Context, filter Filter) (int, error)
}
