package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/httputil"
	"github.com/hdcn/ledenportaal/pkg/middleware"
	"github.com/hdcn/ledenportaal/pkg/observability"
	"github.com/hdcn/ledenportaal/pkg/parameters"
)

// AuthzHandlers exposes the access evaluator over HTTP. The frontend
// uses these endpoints to decide what to render; the backend guards
// enforce the same table, so a stale frontend can only ever show too
// little, not unlock too much.
type AuthzHandlers struct {
	evaluator  *authz.Evaluator
	parameters parameters.Store
	metrics    *observability.Metrics
}

// NewAuthzHandlers creates handlers for permission checks. parameters
// and metrics may be nil.
func NewAuthzHandlers(evaluator *authz.Evaluator, params parameters.Store, metrics *observability.Metrics) *AuthzHandlers {
	return &AuthzHandlers{evaluator: evaluator, parameters: params, metrics: metrics}
}

// RegisterRoutes registers the authz API routes.
func (h *AuthzHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/authz/check", h.check).Methods("POST")
	router.HandleFunc("/authz/validate", h.validate).Methods("POST")
	router.HandleFunc("/authz/capability", h.capability).Methods("POST")
	router.HandleFunc("/authz/regions", h.regions).Methods("GET")
	router.HandleFunc("/me", h.me).Methods("GET")

	roles := middleware.RequirePermission(h.evaluator, authz.ResourcePermissions, authz.ActionRead)
	router.Handle("/authz/roles", roles(http.HandlerFunc(h.roles))).Methods("GET")
}

// check evaluates one permission request and returns the full decision,
// including the reason and the roles that matched. Every call lands in
// the audit trail, allowed or not.
func (h *AuthzHandlers) check(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Resource, "resource") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Action, "action") {
		return
	}

	action := authz.Action(req.Action)
	if !action.Valid() {
		httputil.WriteBadRequest(w, "unknown action: "+req.Action)
		return
	}

	resource := authz.Resource(req.Resource)
	region := authz.Region(req.Region)

	start := time.Now()
	decision := h.evaluator.Explain(user, resource, action, region)
	if h.metrics != nil {
		h.metrics.ObserveDecision(req.Resource, req.Action, decision.Allowed, time.Since(start))
	}

	audit.RecordDecision(r.Context(), r, user, resource, action, region, decision)
	httputil.WriteSuccess(w, decision)
}

// validate evaluates a conjunction of permission keys. A malformed key
// fails the whole set; an empty set is vacuously valid.
func (h *AuthzHandlers) validate(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req ValidateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	valid := h.evaluator.CheckAll(user, req.Keys, authz.Region(req.Region))
	httputil.WriteSuccess(w, ValidateResponse{Valid: valid})
}

// capability reports, per key, whether the user holds the permission
// type in any region at all.
func (h *AuthzHandlers) capability(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CapabilityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	caps := make(map[string]bool, len(req.Keys))
	for _, key := range req.Keys {
		resource, action, ok := authz.ParsePermissionKey(key)
		caps[key] = ok && h.evaluator.HasPermissionType(user, resource, action)
	}

	httputil.WriteSuccess(w, CapabilityResponse{Capabilities: caps})
}

// regions lists the regions the user's grants reach.
func (h *AuthzHandlers) regions(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	regions, all := h.resolveRegions(r.Context(), user)
	httputil.WriteSuccess(w, RegionsResponse{Regions: regions, AllRegions: all})
}

// me describes the session user together with their region reach, so
// the frontend needs a single call after login.
func (h *AuthzHandlers) me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	regions, all := h.resolveRegions(r.Context(), user)
	httputil.WriteSuccess(w, MeResponse{
		ID:         user.ID,
		Email:      user.Email,
		Groups:     user.Groups,
		Regions:    regions,
		AllRegions: all,
	})
}

// roles returns the active role table for the admin screens.
func (h *AuthzHandlers) roles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.evaluator.Table().Roles())
}

// resolveRegions expands the evaluator's wildcard answer into the
// configured region list, so clients never have to interpret "all"
// themselves.
func (h *AuthzHandlers) resolveRegions(ctx context.Context, user *authz.User) ([]string, bool) {
	accessible := h.evaluator.AccessibleRegions(user)

	all := len(accessible) == 1 && accessible[0] == authz.RegionAll
	if !all {
		out := make([]string, len(accessible))
		for i, region := range accessible {
			out[i] = string(region)
		}
		return out, false
	}

	if h.parameters != nil {
		if regions, err := h.parameters.Regions(ctx); err == nil && len(regions) > 0 {
			return regions, true
		}
	}

	// No parameter store to expand against; fall back to the built-in
	// region list rather than leaking the wildcard sentinel.
	defaults := authz.DefaultRegions()
	out := make([]string, len(defaults))
	for i, region := range defaults {
		out[i] = string(region)
	}
	return out, true
}
