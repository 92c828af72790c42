package middleware

import (
	"net/http"

	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/contextkeys"
	"github.com/hdcn/ledenportaal/pkg/httputil"
	"github.com/hdcn/ledenportaal/pkg/session"
)

// SessionMiddleware resolves the bearer token on each request to a
// portal user and puts it on the request context.
type SessionMiddleware struct {
	manager  *session.Manager
	optional bool // allow requests without a session
}

// NewSessionMiddleware creates the session middleware. With optional
// set, requests without an Authorization header pass through
// anonymously; a present but unresolvable token is still rejected.
func NewSessionMiddleware(manager *session.Manager, optional bool) *SessionMiddleware {
	return &SessionMiddleware{manager: manager, optional: optional}
}

// Handler wraps an HTTP handler with session resolution.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := session.TokenFromRequest(r)
		if err != nil {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing or malformed authorization header")
			return
		}

		user, err := m.manager.FromToken(r.Context(), token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		ctx = contextkeys.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUser extracts the resolved portal user from a request. Returns nil
// when the request carries no session.
func GetUser(r *http.Request) *authz.User {
	return contextkeys.GetUser(r.Context())
}
