package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hdcn/ledenportaal/pkg/authz"
)

const sampleRoleTable = `
version: "2026-03"
roles:
  - role: hdcnLeden
    description: Basisrol voor alle leden
    grants:
      - resource: members
        action: read
      - resource: events
        action: read
  - role: regionAdmin-utrecht
    grants:
      - resource: events
        action: crud
        region: utrecht
  - role: secretariaat
    grants:
      - resource: members
        action: crud
        region: all
`

func TestParseRoleTable(t *testing.T) {
	table, version, err := ParseRoleTable([]byte(sampleRoleTable))
	if err != nil {
		t.Fatalf("ParseRoleTable() error = %v", err)
	}

	if version != "2026-03" {
		t.Errorf("version = %q, want 2026-03", version)
	}
	if table.Len() != 3 {
		t.Errorf("table has %d roles, want 3", table.Len())
	}

	role, ok := table.Role("regionAdmin-utrecht")
	if !ok {
		t.Fatal("expected regionAdmin-utrecht role")
	}
	if len(role.Grants) != 1 {
		t.Fatalf("regionAdmin-utrecht has %d grants, want 1", len(role.Grants))
	}
	grant := role.Grants[0]
	if grant.Resource != authz.ResourceEvents || grant.Action != authz.ActionCRUD || grant.Region != authz.Region("utrecht") {
		t.Errorf("unexpected grant %v", grant)
	}

	leden, ok := table.Role("hdcnLeden")
	if !ok {
		t.Fatal("expected hdcnLeden role")
	}
	for _, g := range leden.Grants {
		if !g.Unscoped() {
			t.Errorf("hdcnLeden grant %v should be unscoped", g)
		}
	}
}

func TestParseRoleTable_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "not yaml",
			input:   "{{{",
			wantErr: "failed to parse",
		},
		{
			name:    "missing version",
			input:   "roles:\n  - role: a\n    grants:\n      - resource: members\n        action: read\n",
			wantErr: "missing a version",
		},
		{
			name:    "no roles",
			input:   "version: \"1\"\nroles: []\n",
			wantErr: "defines no roles",
		},
		{
			name:    "unknown action",
			input:   "version: \"1\"\nroles:\n  - role: a\n    grants:\n      - resource: members\n        action: fly\n",
			wantErr: "unknown action",
		},
		{
			name:    "duplicate role",
			input:   "version: \"1\"\nroles:\n  - role: a\n    grants:\n      - resource: members\n        action: read\n  - role: a\n    grants:\n      - resource: members\n        action: read\n",
			wantErr: "duplicate role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseRoleTable([]byte(tt.input))
			if err == nil {
				t.Fatalf("ParseRoleTable() = nil error, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRoleTable(t *testing.T) {
	t.Run("empty path selects builtin table", func(t *testing.T) {
		table, version, err := LoadRoleTable("")
		if err != nil {
			t.Fatalf("LoadRoleTable(\"\") error = %v", err)
		}
		if version != "builtin" {
			t.Errorf("version = %q, want builtin", version)
		}
		if _, ok := table.Role(authz.RoleLeden); !ok {
			t.Error("builtin table should contain hdcnLeden")
		}
	})

	t.Run("reads table from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "roles.yaml")
		if err := os.WriteFile(path, []byte(sampleRoleTable), 0644); err != nil {
			t.Fatalf("Failed to write role table: %v", err)
		}

		table, version, err := LoadRoleTable(path)
		if err != nil {
			t.Fatalf("LoadRoleTable() error = %v", err)
		}
		if version != "2026-03" {
			t.Errorf("version = %q, want 2026-03", version)
		}
		if table.Len() != 3 {
			t.Errorf("table has %d roles, want 3", table.Len())
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		if _, _, err := LoadRoleTable("/nonexistent/roles.yaml"); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}
