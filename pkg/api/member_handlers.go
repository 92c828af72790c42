package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/httputil"
	"github.com/hdcn/ledenportaal/pkg/members"
	"github.com/hdcn/ledenportaal/pkg/middleware"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// MemberHandlers serves the member register. Every operation is
// region-scoped: lists narrow to the user's accessible regions, and
// single-record operations re-check the record's region after the
// fetch.
type MemberHandlers struct {
	store     members.Store
	evaluator *authz.Evaluator
}

// NewMemberHandlers creates handlers for the member register.
func NewMemberHandlers(store members.Store, evaluator *authz.Evaluator) *MemberHandlers {
	return &MemberHandlers{store: store, evaluator: evaluator}
}

// RegisterRoutes registers the member API routes.
func (h *MemberHandlers) RegisterRoutes(router *mux.Router) {
	// The list guard validates an explicit ?region= against the table;
	// without the parameter it only requires the read capability and
	// the handler narrows the query itself.
	read := middleware.RequireRegionPermission(h.evaluator, authz.ResourceMembers, authz.ActionRead, "region")
	readAny := middleware.RequirePermission(h.evaluator, authz.ResourceMembers, authz.ActionRead)
	writeAny := middleware.RequirePermission(h.evaluator, authz.ResourceMembers, authz.ActionWrite)

	router.Handle("/members", read(http.HandlerFunc(h.list))).Methods("GET")
	router.Handle("/members", writeAny(http.HandlerFunc(h.create))).Methods("POST")
	router.Handle("/members/{number}", readAny(http.HandlerFunc(h.get))).Methods("GET")
	router.Handle("/members/{number}", writeAny(http.HandlerFunc(h.update))).Methods("PUT")
	router.Handle("/members/{number}", writeAny(http.HandlerFunc(h.delete))).Methods("DELETE")
}

// list returns a page of members. Users without a national grant only
// ever see their own regions, regardless of the filter they send.
func (h *MemberHandlers) list(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var filter members.Filter
	if region := httputil.ParseQueryString(r, "region", ""); region != "" {
		filter.Regions = []authz.Region{authz.Region(region)}
	} else if !h.evaluator.Check(user, authz.ResourceMembers, authz.ActionRead, authz.RegionAll) {
		accessible := h.evaluator.AccessibleRegions(user)
		if len(accessible) == 0 {
			httputil.WriteSuccess(w, ListMembersResponse{Members: []*members.Member{}})
			return
		}
		filter.Regions = accessible
	}

	filter.Kind = members.MembershipKind(httputil.ParseQueryString(r, "kind", ""))
	filter.Search = httputil.ParseQueryString(r, "search", "")
	if r.URL.Query().Has("active") {
		active, err := httputil.ParseQueryBool(r, "active", false)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid active parameter")
			return
		}
		filter.Active = &active
	}

	limit, err := httputil.ParseQueryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 0 {
		httputil.WriteBadRequest(w, "invalid limit parameter")
		return
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		httputil.WriteBadRequest(w, "invalid offset parameter")
		return
	}
	filter.Limit = limit
	filter.Offset = offset

	list, err := h.store.List(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if list == nil {
		list = []*members.Member{}
	}

	httputil.WriteSuccess(w, ListMembersResponse{
		Members: list,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

func (h *MemberHandlers) get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	number, ok := httputil.ParsePathStringOrError(w, r, "number")
	if !ok {
		return
	}

	member, err := h.store.Get(r.Context(), number)
	if err != nil {
		if errors.Is(err, members.ErrNotFound) {
			httputil.WriteNotFound(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if !h.allowRegion(w, r, user, authz.ActionRead, authz.Region(member.Region)) {
		return
	}

	httputil.WriteSuccess(w, member)
}

func (h *MemberHandlers) create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var member members.Member
	if !httputil.ParseJSONOrError(w, r, &member) {
		return
	}
	if !httputil.RequireNonEmpty(w, member.MemberNumber, "member_number") {
		return
	}
	if !httputil.RequireNonEmpty(w, member.LastName, "last_name") {
		return
	}
	if !httputil.RequireNonEmpty(w, member.Region, "region") {
		return
	}

	if !h.allowRegion(w, r, user, authz.ActionWrite, authz.Region(member.Region)) {
		return
	}

	if err := h.store.Create(r.Context(), &member); err != nil {
		if errors.Is(err, members.ErrDuplicate) {
			httputil.WriteConflict(w, "member number already taken")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	audit.RecordMutation(r.Context(), r, audit.EventTypeDataMemberCreate,
		authz.ResourceMembers, member.MemberNumber, nil, "member created")
	httputil.WriteCreated(w, member)
}

func (h *MemberHandlers) update(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	number, ok := httputil.ParsePathStringOrError(w, r, "number")
	if !ok {
		return
	}

	var req members.UpdateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	current, err := h.store.Get(r.Context(), number)
	if err != nil {
		if errors.Is(err, members.ErrNotFound) {
			httputil.WriteNotFound(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if !h.allowRegion(w, r, user, authz.ActionWrite, authz.Region(current.Region)) {
		return
	}
	// Moving a member needs write access in the destination region too.
	if req.Region != nil && *req.Region != current.Region {
		if !h.allowRegion(w, r, user, authz.ActionWrite, authz.Region(*req.Region)) {
			return
		}
	}

	if err := h.store.Update(r.Context(), number, &req); err != nil {
		if errors.Is(err, members.ErrNotFound) {
			httputil.WriteNotFound(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	updated, err := h.store.Get(r.Context(), number)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	audit.RecordMutation(r.Context(), r, audit.EventTypeDataMemberUpdate,
		authz.ResourceMembers, number, memberChanges(current, &req), "member updated")
	httputil.WriteSuccess(w, updated)
}

func (h *MemberHandlers) delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	number, ok := httputil.ParsePathStringOrError(w, r, "number")
	if !ok {
		return
	}

	current, err := h.store.Get(r.Context(), number)
	if err != nil {
		if errors.Is(err, members.ErrNotFound) {
			httputil.WriteNotFound(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if !h.allowRegion(w, r, user, authz.ActionWrite, authz.Region(current.Region)) {
		return
	}

	if err := h.store.Delete(r.Context(), number); err != nil {
		if errors.Is(err, members.ErrNotFound) {
			httputil.WriteNotFound(w, "member not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	audit.RecordMutation(r.Context(), r, audit.EventTypeDataMemberDelete,
		authz.ResourceMembers, number, &audit.ChangeDetails{
			Before: map[string]interface{}{
				"member_number": current.MemberNumber,
				"name":          current.FullName(),
				"region":        current.Region,
			},
		}, "member deleted")
	httputil.WriteNoContent(w)
}

// allowRegion enforces a region-scoped check for a single record. The
// route guard has already established the capability; this narrows it
// to the record's region and audits a denial.
func (h *MemberHandlers) allowRegion(w http.ResponseWriter, r *http.Request, user *authz.User, action authz.Action, region authz.Region) bool {
	decision := h.evaluator.Explain(user, authz.ResourceMembers, action, region)
	if !decision.Allowed {
		audit.RecordDecision(r.Context(), r, user, authz.ResourceMembers, action, region, decision)
		httputil.WriteForbidden(w, "insufficient permissions for region "+string(region))
		return false
	}
	return true
}

// memberChanges builds the audit before/after detail from the fields an
// update actually touched.
func memberChanges(before *members.Member, updates *members.UpdateMemberRequest) *audit.ChangeDetails {
	was := make(map[string]interface{})
	now := make(map[string]interface{})
	set := func(field string, old, changed interface{}) {
		was[field] = old
		now[field] = changed
	}

	if updates.FirstName != nil {
		set("first_name", before.FirstName, *updates.FirstName)
	}
	if updates.Infix != nil {
		set("infix", before.Infix, *updates.Infix)
	}
	if updates.LastName != nil {
		set("last_name", before.LastName, *updates.LastName)
	}
	if updates.Email != nil {
		set("email", before.Email, *updates.Email)
	}
	if updates.Phone != nil {
		set("phone", before.Phone, *updates.Phone)
	}
	if updates.Street != nil {
		set("street", before.Street, *updates.Street)
	}
	if updates.PostalCode != nil {
		set("postal_code", before.PostalCode, *updates.PostalCode)
	}
	if updates.City != nil {
		set("city", before.City, *updates.City)
	}
	if updates.Region != nil {
		set("region", before.Region, *updates.Region)
	}
	if updates.Kind != nil {
		set("kind", string(before.Kind), string(*updates.Kind))
	}
	if updates.Active != nil {
		set("active", before.Active, *updates.Active)
	}

	if len(now) == 0 {
		return nil
	}
	return &audit.ChangeDetails{Before: was, After: now}
}
