package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/contextkeys"
)

// captureLogger records audit events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (l *captureLogger) Log(ctx context.Context, event *audit.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *captureLogger) Close() error { return nil }

func (l *captureLogger) all() []*audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*audit.Event(nil), l.events...)
}

// authedRequest builds a request carrying a session user and an audit
// capture logger on its context.
func authedRequest(method, target string, user *authz.User) (*http.Request, *captureLogger) {
	capture := &captureLogger{}
	req := httptest.NewRequest(method, target, nil)
	ctx := audit.WithLogger(req.Context(), capture)
	if user != nil {
		ctx = contextkeys.WithUser(ctx, user)
	}
	return req.WithContext(ctx), capture
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequirePermission(t *testing.T) {
	evaluator := authz.New(nil)

	t.Run("allows a user holding the permission", func(t *testing.T) {
		guard := RequirePermission(evaluator, authz.ResourceMembers, authz.ActionRead)
		called := false
		req, capture := authedRequest("GET", "/api/v1/members", &authz.User{ID: "lid-1", Groups: []string{authz.RoleLeden}})

		w := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(w, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, capture.all())
	})

	t.Run("denies and audits a user without the permission", func(t *testing.T) {
		guard := RequirePermission(evaluator, authz.ResourceMembers, authz.ActionWrite)
		called := false
		req, capture := authedRequest("POST", "/api/v1/members", &authz.User{ID: "lid-1", Groups: []string{authz.RoleLeden}})

		w := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, w.Code)

		events := capture.all()
		require.Len(t, events, 1)
		assert.Equal(t, audit.EventTypeAuthzAccessDenied, events[0].EventType)
		assert.Equal(t, audit.EventStatusDenied, events[0].Status)
		assert.Equal(t, "lid-1", events[0].UserID)
	})

	t.Run("rejects a request without a session", func(t *testing.T) {
		guard := RequirePermission(evaluator, authz.ResourceMembers, authz.ActionRead)
		called := false
		req, _ := authedRequest("GET", "/api/v1/members", nil)

		w := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireRegionPermission(t *testing.T) {
	evaluator := authz.New(nil)
	admin := &authz.User{ID: "admin-utrecht", Groups: []string{authz.RegionAdminRole("utrecht")}}

	t.Run("region from route variable", func(t *testing.T) {
		called := false
		router := mux.NewRouter()
		guard := RequireRegionPermission(evaluator, authz.ResourceMembers, authz.ActionWrite, "region")
		router.Handle("/api/v1/regions/{region}/members", guard(okHandler(&called))).Methods("POST")

		req, _ := authedRequest("POST", "/api/v1/regions/utrecht/members", admin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("denies another region", func(t *testing.T) {
		called := false
		router := mux.NewRouter()
		guard := RequireRegionPermission(evaluator, authz.ResourceMembers, authz.ActionWrite, "region")
		router.Handle("/api/v1/regions/{region}/members", guard(okHandler(&called))).Methods("POST")

		req, capture := authedRequest("POST", "/api/v1/regions/limburg/members", admin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, w.Code)

		events := capture.all()
		require.Len(t, events, 1)
		assert.Equal(t, "limburg", events[0].Region)
	})

	t.Run("region from query parameter", func(t *testing.T) {
		called := false
		guard := RequireRegionPermission(evaluator, authz.ResourceMembers, authz.ActionWrite, "region")

		req, _ := authedRequest("POST", "/api/v1/members?region=utrecht", admin)
		w := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(w, req)

		assert.True(t, called)
	})

	t.Run("national grant passes any region", func(t *testing.T) {
		called := false
		router := mux.NewRouter()
		guard := RequireRegionPermission(evaluator, authz.ResourceMembers, authz.ActionWrite, "region")
		router.Handle("/api/v1/regions/{region}/members", guard(okHandler(&called))).Methods("POST")

		clerk := &authz.User{ID: "clerk-1", Groups: []string{authz.RoleMutatieLeden}}
		req, _ := authedRequest("POST", "/api/v1/regions/zeeland/members", clerk)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.True(t, called)
	})
}

func TestRequireAnyPermission(t *testing.T) {
	evaluator := authz.New(nil)

	guard := RequireAnyPermission(evaluator,
		authz.Grant{Resource: authz.ResourceMembers, Action: authz.ActionWrite},
		authz.Grant{Resource: authz.ResourceProducts, Action: authz.ActionWrite},
	)

	t.Run("passes on the second grant", func(t *testing.T) {
		called := false
		shop := &authz.User{ID: "shop-1", Groups: []string{authz.RoleProductAdmin}}
		req, _ := authedRequest("POST", "/api/v1/products", shop)

		w := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(w, req)

		assert.True(t, called)
	})

	t.Run("denies when no grant matches", func(t *testing.T) {
		called := false
		req, capture := authedRequest("POST", "/api/v1/products", &authz.User{ID: "lid-1", Groups: []string{authz.RoleLeden}})

		w := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Len(t, capture.all(), 1)
	})
}

func TestRequireAllPermissions(t *testing.T) {
	evaluator := authz.New(nil)

	guard := RequireAllPermissions(evaluator, "members_read", "members_write")

	t.Run("passes a user holding every key", func(t *testing.T) {
		called := false
		mutatie := &authz.User{ID: "mut-1", Groups: []string{authz.RoleMutatieLeden}}
		req, _ := authedRequest("POST", "/api/v1/members", mutatie)

		w := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(w, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("denies and audits the failing key", func(t *testing.T) {
		called := false
		req, capture := authedRequest("POST", "/api/v1/members", &authz.User{ID: "lid-1", Groups: []string{authz.RoleLeden}})

		w := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, w.Code)

		events := capture.all()
		require.Len(t, events, 1)
		assert.Equal(t, "members", events[0].Resource)
		assert.Equal(t, "write", events[0].Action)
	})

	t.Run("rejects anonymous callers", func(t *testing.T) {
		called := false
		req, _ := authedRequest("POST", "/api/v1/members", nil)

		w := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
