package authz

import (
	"strings"
	"time"
)

// Resource identifies a portal function or feature that access decisions
// are made about.
type Resource string

const (
	ResourceMembers     Resource = "members"
	ResourceProducts    Resource = "products"
	ResourceParameters  Resource = "parameters"
	ResourcePermissions Resource = "permissions"
	ResourceEvents      Resource = "events"
	ResourceExports     Resource = "exports"
	ResourceLabels      Resource = "labels"
)

// Action is one of the fixed action vocabulary. ActionCRUD is the
// meta-action: a grant carrying it also satisfies read, write and export
// requests for the same resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionExport Action = "export"
	ActionCRUD   Action = "crud"
)

// Valid reports whether a is part of the action vocabulary.
func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionWrite, ActionExport, ActionCRUD:
		return true
	}
	return false
}

// Region is a flat scope identifier such as "utrecht" or "limburg".
// The empty string on a grant means the grant is unscoped (unrestricted);
// RegionAll is the reserved wildcard.
type Region string

// RegionAll is the universal wildcard region.
const RegionAll Region = "all"

// DefaultRegions returns the club's region identifiers in display order.
// The canonical runtime list lives in the parameters store; this set seeds
// the built-in role table and fresh installations.
func DefaultRegions() []Region {
	return []Region{
		"groningen",
		"friesland",
		"drenthe",
		"overijssel",
		"flevoland",
		"gelderland",
		"utrecht",
		"noord-holland",
		"zuid-holland",
		"zeeland",
		"noord-brabant",
		"limburg",
	}
}

// Grant is a single permission: an action on a resource, optionally
// restricted to one region. A zero Region leaves the grant unscoped.
type Grant struct {
	Resource Resource `json:"resource" yaml:"resource"`
	Action   Action   `json:"action" yaml:"action"`
	Region   Region   `json:"region,omitempty" yaml:"region,omitempty"`
}

// String returns a readable representation of the grant.
func (g Grant) String() string {
	s := string(g.Resource) + ":" + string(g.Action)
	if g.Region != "" {
		s += "@" + string(g.Region)
	}
	return s
}

// PermissionKey returns the compound "<resource>_<action>" form used by
// permission lists and the validate endpoint.
func (g Grant) PermissionKey() string {
	return string(g.Resource) + "_" + string(g.Action)
}

// Unscoped reports whether the grant carries no region restriction.
func (g Grant) Unscoped() bool {
	return g.Region == ""
}

// Role is a named collection of grants. Roles are static configuration:
// built once at process start and never mutated afterwards.
type Role struct {
	Name        string  `json:"role" yaml:"role"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Grants      []Grant `json:"grants" yaml:"grants"`
}

// User is the session descriptor supplied by the authentication
// collaborator. Groups holds role names; Permissions optionally holds
// precomputed "<resource>_<action>" keys. The evaluator treats the whole
// struct as read-only input.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email,omitempty"`
	Groups      []string `json:"groups"`
	Permissions []string `json:"permissions,omitempty"`
}

// Decision is the full outcome of a permission check.
type Decision struct {
	Allowed      bool      `json:"allowed"`
	Reason       string    `json:"reason,omitempty"`
	MatchedRoles []string  `json:"matched_roles,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Built-in role names.
const (
	RoleLeden        = "hdcnLeden"
	RoleMutatieLeden = "hdcnMutatieLeden"
	RoleSecretariaat = "hdcnSecretariaat"
	RoleProductAdmin = "hdcnProductAdmin"
	RoleEvenementen  = "hdcnEvenementen"
	RoleWebmaster    = "hdcnWebmaster"
)

// RegionAdminRolePrefix prefixes the per-region administrator roles,
// e.g. "regionAdmin-utrecht".
const RegionAdminRolePrefix = "regionAdmin-"

// RegionAdminRole returns the administrator role name for a region.
func RegionAdminRole(region Region) string {
	return RegionAdminRolePrefix + string(region)
}

// ParsePermissionKey splits a compound "<resource>_<action>" key. Because
// resource names may themselves contain underscores, the split happens on
// the last one. Keys without a separator, with an empty resource, or with
// an action outside the vocabulary are malformed and report ok=false.
func ParsePermissionKey(key string) (Resource, Action, bool) {
	i := strings.LastIndex(key, "_")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	resource := Resource(key[:i])
	action := Action(key[i+1:])
	if !action.Valid() {
		return "", "", false
	}
	return resource, action, true
}

// BuiltInRoles returns the compiled-in role definitions used when no role
// table file is configured.
func BuiltInRoles() []Role {
	roles := []Role{
		{
			Name:        RoleLeden,
			Description: "Ordinary club member: may view the member list",
			Grants: []Grant{
				{Resource: ResourceMembers, Action: ActionRead},
			},
		},
		{
			Name:        RoleMutatieLeden,
			Description: "Membership clerk: maintains member records nationwide",
			Grants: []Grant{
				{Resource: ResourceMembers, Action: ActionRead, Region: RegionAll},
				{Resource: ResourceMembers, Action: ActionWrite, Region: RegionAll},
			},
		},
		{
			Name:        RoleSecretariaat,
			Description: "National secretariat: full member administration and reporting",
			Grants: []Grant{
				{Resource: ResourceMembers, Action: ActionCRUD, Region: RegionAll},
				{Resource: ResourceLabels, Action: ActionRead, Region: RegionAll},
				{Resource: ResourceExports, Action: ActionCRUD, Region: RegionAll},
				{Resource: ResourceParameters, Action: ActionRead},
			},
		},
		{
			Name:        RoleProductAdmin,
			Description: "Club shop administrator",
			Grants: []Grant{
				{Resource: ResourceProducts, Action: ActionCRUD},
				{Resource: ResourceParameters, Action: ActionRead},
			},
		},
		{
			Name:        RoleEvenementen,
			Description: "Event committee: maintains the national event calendar",
			Grants: []Grant{
				{Resource: ResourceEvents, Action: ActionCRUD},
			},
		},
		{
			Name:        RoleWebmaster,
			Description: "Webmaster: unrestricted access to every portal function",
			Grants: []Grant{
				{Resource: ResourceMembers, Action: ActionCRUD, Region: RegionAll},
				{Resource: ResourceProducts, Action: ActionCRUD, Region: RegionAll},
				{Resource: ResourceParameters, Action: ActionCRUD, Region: RegionAll},
				{Resource: ResourcePermissions, Action: ActionCRUD, Region: RegionAll},
				{Resource: ResourceEvents, Action: ActionCRUD, Region: RegionAll},
				{Resource: ResourceExports, Action: ActionCRUD, Region: RegionAll},
				{Resource: ResourceLabels, Action: ActionCRUD, Region: RegionAll},
			},
		},
	}

	for _, region := range DefaultRegions() {
		roles = append(roles, Role{
			Name:        RegionAdminRole(region),
			Description: "Regional administrator for " + string(region),
			Grants: []Grant{
				{Resource: ResourceMembers, Action: ActionRead, Region: region},
				{Resource: ResourceMembers, Action: ActionWrite, Region: region},
				{Resource: ResourceMembers, Action: ActionExport, Region: region},
				{Resource: ResourceEvents, Action: ActionCRUD, Region: region},
				{Resource: ResourceLabels, Action: ActionRead, Region: region},
			},
		})
	}

	return roles
}
