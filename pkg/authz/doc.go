// Package authz implements the access evaluator for the H-DCN member
// portal: a pure, default-deny permission check over an immutable
// role→grant table.
//
// # Overview
//
// Every portal feature (member administration, shop, parameters, event
// calendar, exports, label printing) is identified by a Resource. Roles
// grant actions on resources, optionally restricted to one club region.
// The evaluator consumes the session descriptor the authentication layer
// produced and answers three question shapes:
//
//  1. May this user perform action A on resource F, optionally in region R?
//  2. Which regions can this user act in?
//  3. Does this user hold permission type T for resource F at all,
//     regardless of region?
//
// # Data Model
//
// A Grant is a (resource, action, region) triple:
//
//	authz.Grant{Resource: authz.ResourceMembers, Action: authz.ActionRead}
//	authz.Grant{Resource: authz.ResourceEvents, Action: authz.ActionCRUD, Region: "utrecht"}
//
// The action vocabulary is closed: read, write, export, and the crud
// meta-action that subsumes the other three. Regions are flat strings
// with one reserved wildcard, "all". A grant without a region is
// unscoped and unrestricted.
//
// A user's effective permission set is the union of grants across all
// roles they hold. There is no precedence, no override, and no deny
// rule: union only.
//
// # Evaluation
//
//	table, err := authz.NewTable(rolesFromConfig)
//	if err != nil {
//		// bad configuration fails at startup, never at decision time
//	}
//	eval := authz.New(table)
//
//	user := &authz.User{ID: "abc", Groups: []string{"regionAdmin-utrecht"}}
//	eval.Check(user, authz.ResourceEvents, authz.ActionWrite, "utrecht") // true
//	eval.Check(user, authz.ResourceEvents, authz.ActionWrite, "limburg") // false
//	eval.HasPermissionType(user, authz.ResourceEvents, authz.ActionWrite) // true
//	eval.AccessibleRegions(user) // ["utrecht"]
//
// AccessibleRegions returns the ["all"] sentinel whenever any held grant
// is scoped "all"; callers expand it themselves. Unscoped grants name no
// region, so a user whose only grant is (members, read) gets an empty
// region list even though the grant itself is valid everywhere.
//
// CheckAll is the single combinator over compound "<resource>_<action>"
// keys, AND-ing Check across the list:
//
//	eval.CheckAll(user, []string{"members_read", "members_export"}, "utrecht")
//
// # Default Deny
//
// The evaluator never returns an error and never panics. A nil user, a
// user without roles, a role name missing from the table, and a
// malformed permission key all evaluate to denial. Absence of data
// degrades to "no", never to an exception.
//
// # Immutability and Concurrency
//
// The table is built once (from configuration or BuiltInRoles) and never
// mutated; the evaluator holds no other state. All methods are safe for
// unlimited concurrent use without coordination.
//
// # Related Packages
//
//   - pkg/session: produces the User descriptor from a bearer token
//   - pkg/middleware: HTTP guards built on the evaluator
//   - pkg/audit: records decisions for the audit trail
//   - pkg/config: loads the role table from its versioned YAML source
package authz
