package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/members"
)

func newMemberRouter(t *testing.T) (*mux.Router, members.Store) {
	t.Helper()
	store := newMemberStore(t)
	router := mux.NewRouter()
	NewMemberHandlers(store, authz.New(nil)).RegisterRoutes(router)
	return router, store
}

func insertMember(t *testing.T, store members.Store, number, region string, active bool) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &members.Member{
		MemberNumber: number,
		FirstName:    "Jan",
		LastName:     "Jansen",
		Email:        number + "@hdcn.nl",
		Street:       "Dorpsstraat 1",
		PostalCode:   "3511 AB",
		City:         "Utrecht",
		Region:       region,
		Kind:         members.KindFull,
		Active:       active,
		JoinedAt:     time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC),
	}))
}

// A user who is both an ordinary member and a regional admin keeps the
// club-wide read of the member role; the regional grant must not narrow
// it.
func TestMemberHandlers_List_DualRoleStaysUnrestricted(t *testing.T) {
	router, store := newMemberRouter(t)
	insertMember(t, store, "2041", "utrecht", true)
	insertMember(t, store, "2042", "limburg", true)

	user := portalUser("lid-1", authz.RoleLeden, authz.RegionAdminRole("utrecht"))
	req, _ := authedRequest(t, "GET", "/members", user, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var list ListMembersResponse
	decodeBody(t, rec, &list)
	assert.Len(t, list.Members, 2)
	assert.Equal(t, 2, list.Total)
}

func TestMemberHandlers_List_ScopedAdminCannotAskNationalView(t *testing.T) {
	router, store := newMemberRouter(t)
	insertMember(t, store, "2041", "utrecht", true)
	insertMember(t, store, "2042", "limburg", true)

	user := portalUser("admin-utrecht", authz.RegionAdminRole("utrecht"))
	req, _ := authedRequest(t, "GET", "/members?region=all", user, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Their own region works, both implicitly and explicitly.
	req, _ = authedRequest(t, "GET", "/members?region=utrecht", user, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListMembersResponse
	decodeBody(t, rec, &list)
	assert.Len(t, list.Members, 1)
	assert.Equal(t, "2041", list.Members[0].MemberNumber)
}

func TestMemberHandlers_List_Filters(t *testing.T) {
	router, store := newMemberRouter(t)
	insertMember(t, store, "2041", "utrecht", true)
	insertMember(t, store, "2042", "utrecht", false)
	insertMember(t, store, "2043", "limburg", true)

	user := portalUser("secretaris-1", authz.RoleSecretariaat)

	req, _ := authedRequest(t, "GET", "/members?active=true", user, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListMembersResponse
	decodeBody(t, rec, &list)
	assert.Len(t, list.Members, 2)

	req, _ = authedRequest(t, "GET", "/members?limit=1&offset=1", user, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &list)
	assert.Len(t, list.Members, 1)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 1, list.Limit)
	assert.Equal(t, 1, list.Offset)
}

func TestMemberHandlers_List_InvalidParams(t *testing.T) {
	router, _ := newMemberRouter(t)
	user := portalUser("secretaris-1", authz.RoleSecretariaat)

	for _, target := range []string{
		"/members?limit=abc",
		"/members?limit=-1",
		"/members?offset=x",
		"/members?active=misschien",
	} {
		req, _ := authedRequest(t, "GET", target, user, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestMemberHandlers_Create_DeniedOutsideRegion(t *testing.T) {
	router, store := newMemberRouter(t)
	user := portalUser("admin-utrecht", authz.RegionAdminRole("utrecht"))

	req, capture := authedRequest(t, "POST", "/members", user, members.Member{
		MemberNumber: "2041",
		LastName:     "Jansen",
		Region:       "limburg",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, err := store.Get(context.Background(), "2041")
	assert.ErrorIs(t, err, members.ErrNotFound)

	denied := capture.ofType(audit.EventTypeAuthzAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "limburg", denied[0].Region)
	assert.Equal(t, "write", denied[0].Action)
}

func TestMemberHandlers_Create_Validation(t *testing.T) {
	router, _ := newMemberRouter(t)
	user := portalUser("secretaris-1", authz.RoleSecretariaat)

	tests := []struct {
		name string
		body members.Member
	}{
		{"missing number", members.Member{LastName: "Jansen", Region: "utrecht"}},
		{"missing last name", members.Member{MemberNumber: "2041", Region: "utrecht"}},
		{"missing region", members.Member{MemberNumber: "2041", LastName: "Jansen"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := authedRequest(t, "POST", "/members", user, tt.body)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMemberHandlers_Create_Duplicate(t *testing.T) {
	router, store := newMemberRouter(t)
	insertMember(t, store, "2041", "utrecht", true)

	user := portalUser("secretaris-1", authz.RoleSecretariaat)
	req, _ := authedRequest(t, "POST", "/members", user, members.Member{
		MemberNumber: "2041",
		LastName:     "Jansen",
		Region:       "utrecht",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// Moving a member out of the admin's own region needs write access in
// the destination region too.
func TestMemberHandlers_Update_MoveNeedsDestinationRegion(t *testing.T) {
	router, store := newMemberRouter(t)
	insertMember(t, store, "2041", "utrecht", true)

	user := portalUser("admin-utrecht", authz.RegionAdminRole("utrecht"))
	destination := "limburg"
	req, capture := authedRequest(t, "PUT", "/members/2041", user,
		members.UpdateMemberRequest{Region: &destination})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	denied := capture.ofType(audit.EventTypeAuthzAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "limburg", denied[0].Region)

	current, err := store.Get(context.Background(), "2041")
	require.NoError(t, err)
	assert.Equal(t, "utrecht", current.Region)
}

func TestMemberHandlers_Update_RecordsChangedFields(t *testing.T) {
	router, store := newMemberRouter(t)
	insertMember(t, store, "2041", "utrecht", true)

	user := portalUser("admin-utrecht", authz.RegionAdminRole("utrecht"))
	email := "nieuw@hdcn.nl"
	inactive := false
	req, capture := authedRequest(t, "PUT", "/members/2041", user,
		members.UpdateMemberRequest{Email: &email, Active: &inactive})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var updated members.Member
	decodeBody(t, rec, &updated)
	assert.Equal(t, "nieuw@hdcn.nl", updated.Email)
	assert.False(t, updated.Active)

	mutations := capture.ofType(audit.EventTypeDataMemberUpdate)
	require.Len(t, mutations, 1)
	require.NotNil(t, mutations[0].Changes)
	assert.Equal(t, "2041@hdcn.nl", mutations[0].Changes.Before["email"])
	assert.Equal(t, "nieuw@hdcn.nl", mutations[0].Changes.After["email"])
	assert.NotContains(t, mutations[0].Changes.After, "last_name")
}

func TestMemberHandlers_Update_NotFound(t *testing.T) {
	router, _ := newMemberRouter(t)
	user := portalUser("secretaris-1", authz.RoleSecretariaat)

	email := "x@hdcn.nl"
	req, _ := authedRequest(t, "PUT", "/members/9999", user,
		members.UpdateMemberRequest{Email: &email})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemberHandlers_Delete_AuditsSnapshot(t *testing.T) {
	router, store := newMemberRouter(t)
	insertMember(t, store, "2041", "utrecht", true)

	user := portalUser("secretaris-1", authz.RoleSecretariaat)
	req, capture := authedRequest(t, "DELETE", "/members/2041", user, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err := store.Get(context.Background(), "2041")
	assert.ErrorIs(t, err, members.ErrNotFound)

	deletions := capture.ofType(audit.EventTypeDataMemberDelete)
	require.Len(t, deletions, 1)
	require.NotNil(t, deletions[0].Changes)
	assert.Equal(t, "utrecht", deletions[0].Changes.Before["region"])
	assert.Equal(t, "Jan Jansen", deletions[0].Changes.Before["name"])
}

func TestMemberChanges(t *testing.T) {
	before := &members.Member{Email: "oud@hdcn.nl", Region: "utrecht", Active: true}

	assert.Nil(t, memberChanges(before, &members.UpdateMemberRequest{}))

	email := "nieuw@hdcn.nl"
	region := "limburg"
	changes := memberChanges(before, &members.UpdateMemberRequest{Email: &email, Region: &region})
	require.NotNil(t, changes)
	assert.Equal(t, map[string]interface{}{"email": "oud@hdcn.nl", "region": "utrecht"}, changes.Before)
	assert.Equal(t, map[string]interface{}{"email": "nieuw@hdcn.nl", "region": "limburg"}, changes.After)
}
