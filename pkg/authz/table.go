package authz

import (
	"fmt"
)

// Table is the immutable role→grant lookup built once at process start.
// All evaluator decisions resolve against it; no write path exists after
// construction, so concurrent use needs no locking.
type Table struct {
	roles map[string]Role
	order []string
}

// NewTable builds a Table from role definitions. It rejects empty or
// duplicate role names, empty resources, and actions outside the
// vocabulary so that a bad configuration fails at startup rather than
// surfacing as a wrong decision later. Grant slices are copied; callers
// keep no handle into the table's state.
func NewTable(roles []Role) (*Table, error) {
	t := &Table{
		roles: make(map[string]Role, len(roles)),
		order: make([]string, 0, len(roles)),
	}

	for _, role := range roles {
		if role.Name == "" {
			return nil, fmt.Errorf("role with empty name")
		}
		if _, exists := t.roles[role.Name]; exists {
			return nil, fmt.Errorf("duplicate role %q", role.Name)
		}
		for _, g := range role.Grants {
			if g.Resource == "" {
				return nil, fmt.Errorf("role %q: grant with empty resource", role.Name)
			}
			if !g.Action.Valid() {
				return nil, fmt.Errorf("role %q: unknown action %q", role.Name, g.Action)
			}
		}

		copied := role
		copied.Grants = append([]Grant(nil), role.Grants...)
		t.roles[role.Name] = copied
		t.order = append(t.order, role.Name)
	}

	return t, nil
}

// DefaultTable returns a table built from the compiled-in roles.
func DefaultTable() *Table {
	t, err := NewTable(BuiltInRoles())
	if err != nil {
		panic("authz: built-in role table invalid: " + err.Error())
	}
	return t
}

// Role looks up a role by name.
func (t *Table) Role(name string) (Role, bool) {
	role, ok := t.roles[name]
	return role, ok
}

// Roles returns all roles in definition order. The returned slice and its
// grants are copies; mutating them does not affect the table.
func (t *Table) Roles() []Role {
	out := make([]Role, 0, len(t.order))
	for _, name := range t.order {
		role := t.roles[name]
		role.Grants = append([]Grant(nil), role.Grants...)
		out = append(out, role)
	}
	return out
}

// Len returns the number of roles in the table.
func (t *Table) Len() int {
	return len(t.order)
}
