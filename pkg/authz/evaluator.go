package authz

import (
	"fmt"
	"time"
)

// Evaluator answers access questions against an immutable role table.
// It is pure: no I/O, no mutation of its inputs, no state beyond the
// table it was constructed with. Every indeterminate input (nil user,
// roleless user, unknown role name, malformed permission key) resolves
// to denial, never to an error or panic.
type Evaluator struct {
	table *Table
}

// New creates an evaluator over the given table. A nil table selects the
// built-in roles.
func New(table *Table) *Evaluator {
	if table == nil {
		table = DefaultTable()
	}
	return &Evaluator{table: table}
}

// Table returns the role table the evaluator resolves against.
func (e *Evaluator) Table() *Table {
	return e.table
}

// sourcedGrant pairs a grant with the role (or the literal "permissions"
// list) it came from, so decisions can report what matched.
type sourcedGrant struct {
	source string
	grant  Grant
}

// explicitSource labels grants parsed from a user's precomputed
// permission keys rather than from a role.
const explicitSource = "permissions"

// grantsFor collects the union of grants across the user's roles, in
// group order, followed by any grants parsed from the user's explicit
// permission keys. Unknown role names and malformed keys contribute
// nothing.
func (e *Evaluator) grantsFor(u *User) []sourcedGrant {
	var grants []sourcedGrant
	for _, name := range u.Groups {
		role, ok := e.table.Role(name)
		if !ok {
			continue
		}
		for _, g := range role.Grants {
			grants = append(grants, sourcedGrant{source: role.Name, grant: g})
		}
	}
	for _, key := range u.Permissions {
		resource, action, ok := ParsePermissionKey(key)
		if !ok {
			continue
		}
		grants = append(grants, sourcedGrant{
			source: explicitSource,
			grant:  Grant{Resource: resource, Action: action},
		})
	}
	return grants
}

// Check reports whether the user may perform action on resource,
// optionally limited to one region. An empty region means no region
// filter was requested.
func (e *Evaluator) Check(u *User, resource Resource, action Action, region Region) bool {
	return e.Explain(u, resource, action, region).Allowed
}

// Explain performs the same evaluation as Check and returns the full
// decision: outcome, the roles that granted it, and a reason string for
// the audit trail.
//
// A grant matches when its resource equals the requested resource, its
// action equals the requested action (or the grant carries the crud
// meta-action and read, write or export was requested), and its region
// clause passes: no region was requested, the grant is unscoped, the
// grant's region equals the requested one or is the "all" wildcard, or
// the user holds any "all"-scoped grant.
func (e *Evaluator) Explain(u *User, resource Resource, action Action, region Region) Decision {
	now := time.Now()
	if u == nil {
		return Decision{Reason: "no session", CheckedAt: now}
	}
	if len(u.Groups) == 0 {
		return Decision{Reason: "no roles assigned", CheckedAt: now}
	}

	grants := e.grantsFor(u)

	wildcard := false
	for _, sg := range grants {
		if sg.grant.Region == RegionAll {
			wildcard = true
			break
		}
	}

	var matched []string
	seen := make(map[string]bool)
	for _, sg := range grants {
		if sg.grant.Resource != resource {
			continue
		}
		if !actionMatches(sg.grant.Action, action) {
			continue
		}
		if !regionMatches(sg.grant.Region, region, wildcard) {
			continue
		}
		if !seen[sg.source] {
			seen[sg.source] = true
			matched = append(matched, sg.source)
		}
	}

	if len(matched) == 0 {
		return Decision{Reason: "no matching grant", CheckedAt: now}
	}
	return Decision{
		Allowed:      true,
		Reason:       fmt.Sprintf("granted by: %v", matched),
		MatchedRoles: matched,
		CheckedAt:    now,
	}
}

// AccessibleRegions returns the de-duplicated union of region scopes
// across the user's grants, in order of first encounter. Any "all" grant
// short-circuits to the single-element ["all"] sentinel; callers must
// check for it before treating the result as an explicit allow-list.
// Unscoped grants name no region and contribute nothing, so the result
// is empty for a user whose grants are all unscoped, as it is for an
// absent or roleless user.
func (e *Evaluator) AccessibleRegions(u *User) []Region {
	regions := []Region{}
	if u == nil || len(u.Groups) == 0 {
		return regions
	}
	seen := make(map[Region]bool)
	for _, sg := range e.grantsFor(u) {
		r := sg.grant.Region
		if r == "" {
			continue
		}
		if r == RegionAll {
			return []Region{RegionAll}
		}
		if !seen[r] {
			seen[r] = true
			regions = append(regions, r)
		}
	}
	return regions
}

// HasPermissionType reports whether any grant for the resource carries
// the action (or crud). Region scoping is ignored entirely: this answers
// "does the capability exist at all", not "is it allowed here".
func (e *Evaluator) HasPermissionType(u *User, resource Resource, action Action) bool {
	if u == nil || len(u.Groups) == 0 {
		return false
	}
	for _, sg := range e.grantsFor(u) {
		if sg.grant.Resource == resource && actionMatches(sg.grant.Action, action) {
			return true
		}
	}
	return false
}

// CheckAll evaluates a list of compound "<resource>_<action>" keys and
// reports whether every one of them passes Check for the given region.
// An empty list is vacuously true; a malformed key fails the whole
// conjunction. This is the only multi-permission combinator; there is
// no OR form.
func (e *Evaluator) CheckAll(u *User, keys []string, region Region) bool {
	for _, key := range keys {
		resource, action, ok := ParsePermissionKey(key)
		if !ok {
			return false
		}
		if !e.Check(u, resource, action, region) {
			return false
		}
	}
	return true
}

// actionMatches reports whether a granted action satisfies the requested
// one. The crud meta-action subsumes read, write and export; a crud
// request is only satisfied by a crud grant.
func actionMatches(granted, requested Action) bool {
	if granted == requested {
		return true
	}
	if granted == ActionCRUD {
		switch requested {
		case ActionRead, ActionWrite, ActionExport:
			return true
		}
	}
	return false
}

// regionMatches evaluates the region clause of a single grant. wildcard
// reports whether the user holds any "all"-scoped grant, which satisfies
// the clause regardless of the grant under test.
func regionMatches(granted, requested Region, wildcard bool) bool {
	if requested == "" {
		return true
	}
	if granted == "" || granted == RegionAll {
		return true
	}
	if granted == requested {
		return true
	}
	return wildcard
}
