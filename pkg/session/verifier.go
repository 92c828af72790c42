package session

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/hdcn/ledenportaal/pkg/authz"
)

// Verifier checks token signatures against the OIDC issuer's published
// keys before admitting a user. Discovery happens once at construction;
// the underlying verifier caches the JWKS and refreshes it on rotation.
type Verifier struct {
	issuerURL string
	verifier  *oidc.IDTokenVerifier
}

// NewVerifier discovers the issuer's OIDC configuration and builds an ID
// token verifier bound to the portal's client ID.
func NewVerifier(ctx context.Context, issuerURL, clientID string) (*Verifier, error) {
	if issuerURL == "" {
		return nil, fmt.Errorf("OIDC issuer URL is required")
	}
	if clientID == "" {
		return nil, fmt.Errorf("OIDC client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &Verifier{
		issuerURL: issuerURL,
		verifier:  provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify validates the token's signature, issuer, audience and expiry,
// then maps its claims onto a portal user.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*authz.User, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Sub == "" {
		claims.Sub = idToken.Subject
	}

	return claims.User()
}

// Issuer returns the issuer URL the verifier was built against.
func (v *Verifier) Issuer() string {
	return v.issuerURL
}
