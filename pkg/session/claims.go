package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hdcn/ledenportaal/pkg/authz"
)

var (
	// ErrMissingClaim is returned when a required claim is missing.
	ErrMissingClaim = errors.New("missing required claim")

	// ErrNoToken is returned when a request carries no bearer token.
	ErrNoToken = errors.New("no bearer token")
)

// Claims represents the Cognito ID token fields the portal reads. The
// "cognito:groups" claim carries the portal role names; the optional
// "custom:permissions" claim carries precomputed permission keys as a
// comma-separated string for gateways that flatten roles ahead of time.
type Claims struct {
	jwt.RegisteredClaims
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	TokenUse      string   `json:"token_use"`
	CognitoGroups []string `json:"cognito:groups"`
	Permissions   string   `json:"custom:permissions"`
}

// User converts the claims into the evaluator's session descriptor.
// The sub claim is required; everything else degrades to empty.
func (c *Claims) User() (*authz.User, error) {
	if c.Sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return &authz.User{
		ID:          c.Sub,
		Email:       c.Email,
		Groups:      append([]string(nil), c.CognitoGroups...),
		Permissions: splitPermissions(c.Permissions),
	}, nil
}

// ExtractUser parses a token without signature validation and maps its
// claims onto a portal user. Only safe behind a gateway that has already
// verified the token; direct deployments use a Verifier instead.
func ExtractUser(tokenString string) (*authz.User, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return claims.User()
}

// splitPermissions splits the comma-separated custom:permissions claim,
// dropping empty segments and surrounding whitespace.
func splitPermissions(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return keys
}
