package authzkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// SchemaLayout identifies which physical table set backs the store.
// Two layouts exist in the wild: the namespaced rbac_* tables created
// by this module's migrations, and a legacy flat layout predating them.
// The layout is selected once at startup by DetectSchemaLayout; no call
// site ever branches on it.
type SchemaLayout string

const (
	// LayoutNamespaced is the rbac_* table set (current).
	LayoutNamespaced SchemaLayout = "namespaced"

	// LayoutLegacy is the flat roles/permissions table set.
	LayoutLegacy SchemaLayout = "legacy"
)

// tableSet holds the physical table names for one layout.
type tableSet struct {
	roles           string
	permissions     string
	rolePermissions string
	userRoles       string
	auditLog        string
}

func (l SchemaLayout) tables() tableSet {
	if l == LayoutLegacy {
		return tableSet{
			roles:           "roles",
			permissions:     "permissions",
			rolePermissions: "role_permissions",
			userRoles:       "user_roles",
			auditLog:        "audit_log",
		}
	}
	return tableSet{
		roles:           "rbac_roles",
		permissions:     "rbac_permissions",
		rolePermissions: "rbac_role_permissions",
		userRoles:       "rbac_user_roles",
		auditLog:        "rbac_audit_log",
	}
}

// DetectSchemaLayout probes the database catalog and picks the layout.
// The namespaced tables win when present; an existing legacy table set
// is used as-is; an empty database gets the namespaced layout, which
// the migrations then create.
func DetectSchemaLayout(ctx context.Context, db dbkit.IDB) (SchemaLayout, error) {
	exists, err := tableExists(ctx, db, "rbac_user_roles")
	if err != nil {
		return "", err
	}
	if exists {
		return LayoutNamespaced, nil
	}

	exists, err = tableExists(ctx, db, "user_roles")
	if err != nil {
		return "", err
	}
	if exists {
		return LayoutLegacy, nil
	}

	return LayoutNamespaced, nil
}

func tableExists(ctx context.Context, db dbkit.IDB, name string) (bool, error) {
	var count int
	err := dbkit.WithErr1(db.NewRaw(
		"SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
		name).Scan(ctx, &count), "DetectSchemaLayout").Err()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
