package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hdcn/ledenportaal/pkg/authz"
)

// roleFile is the on-disk shape of the versioned role table
type roleFile struct {
	Version string      `yaml:"version"`
	Roles   []roleEntry `yaml:"roles"`
}

type roleEntry struct {
	Role        string       `yaml:"role"`
	Description string       `yaml:"description"`
	Grants      []grantEntry `yaml:"grants"`
}

type grantEntry struct {
	Resource string `yaml:"resource"`
	Action   string `yaml:"action"`
	Region   string `yaml:"region"`
}

// LoadRoleTable reads the role table from the given path. An empty path
// selects the built-in role set. The table is constructed exactly once per
// process; changing the file requires a restart.
func LoadRoleTable(path string) (*authz.Table, string, error) {
	if path == "" {
		return authz.DefaultTable(), "builtin", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read role table: %w", err)
	}

	return ParseRoleTable(data)
}

// ParseRoleTable parses and validates a serialized role table. Any invalid
// role or grant fails the whole table; a portal must not boot with a
// partially understood permission model.
func ParseRoleTable(data []byte) (*authz.Table, string, error) {
	var file roleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, "", fmt.Errorf("failed to parse role table: %w", err)
	}

	if file.Version == "" {
		return nil, "", fmt.Errorf("role table is missing a version")
	}
	if len(file.Roles) == 0 {
		return nil, "", fmt.Errorf("role table %q defines no roles", file.Version)
	}

	roles := make([]authz.Role, 0, len(file.Roles))
	for _, entry := range file.Roles {
		role := authz.Role{
			Name:        entry.Role,
			Description: entry.Description,
			Grants:      make([]authz.Grant, 0, len(entry.Grants)),
		}
		for _, g := range entry.Grants {
			role.Grants = append(role.Grants, authz.Grant{
				Resource: authz.Resource(g.Resource),
				Action:   authz.Action(g.Action),
				Region:   authz.Region(g.Region),
			})
		}
		roles = append(roles, role)
	}

	table, err := authz.NewTable(roles)
	if err != nil {
		return nil, "", fmt.Errorf("role table %q is invalid: %w", file.Version, err)
	}

	return table, file.Version, nil
}
