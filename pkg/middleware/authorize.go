package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/contextkeys"
	"github.com/hdcn/ledenportaal/pkg/httputil"
)

// RequirePermission creates middleware that rejects requests whose user
// does not hold the permission in any region. Denials are recorded on
// the audit trail before the 403 goes out.
func RequirePermission(evaluator *authz.Evaluator, resource authz.Resource, action authz.Action) func(http.Handler) http.Handler {
	return requireDecision(evaluator, resource, action, func(*http.Request) authz.Region { return "" })
}

// RequireRegionPermission is RequirePermission scoped to the region
// named by the route variable, falling back to the query parameter of
// the same name. An absent region means no region filter, which demands
// the permission without a scope.
func RequireRegionPermission(evaluator *authz.Evaluator, resource authz.Resource, action authz.Action, param string) func(http.Handler) http.Handler {
	return requireDecision(evaluator, resource, action, func(r *http.Request) authz.Region {
		if value, ok := mux.Vars(r)[param]; ok && value != "" {
			return authz.Region(value)
		}
		return authz.Region(r.URL.Query().Get(param))
	})
}

// RequireAnyPermission passes when the user holds at least one of the
// given permission types, regardless of region. Used for endpoints that
// serve several audiences, like the region list.
func RequireAnyPermission(evaluator *authz.Evaluator, grants ...authz.Grant) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := contextkeys.GetUser(r.Context())
			if user == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			for _, g := range grants {
				if evaluator.HasPermissionType(user, g.Resource, g.Action) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if len(grants) > 0 {
				g := grants[0]
				decision := evaluator.Explain(user, g.Resource, g.Action, "")
				audit.RecordDecision(r.Context(), r, user, g.Resource, g.Action, "", decision)
			}
			httputil.WriteForbidden(w, "insufficient permissions")
		})
	}
}

// RequireAllPermissions passes only when the user holds every one of
// the given "resource_action" keys, evaluated without a region filter.
// On denial the first failing key is the one recorded on the trail.
func RequireAllPermissions(evaluator *authz.Evaluator, keys ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := contextkeys.GetUser(r.Context())
			if user == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if !evaluator.CheckAll(user, keys, "") {
				for _, key := range keys {
					resource, action, ok := authz.ParsePermissionKey(key)
					if !ok {
						continue
					}
					decision := evaluator.Explain(user, resource, action, "")
					if !decision.Allowed {
						audit.RecordDecision(r.Context(), r, user, resource, action, "", decision)
						break
					}
				}
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requireDecision(evaluator *authz.Evaluator, resource authz.Resource, action authz.Action, regionFn func(*http.Request) authz.Region) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := contextkeys.GetUser(r.Context())
			if user == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			region := regionFn(r)
			decision := evaluator.Explain(user, resource, action, region)
			if !decision.Allowed {
				audit.RecordDecision(r.Context(), r, user, resource, action, region, decision)
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
