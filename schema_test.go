package authzkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSchemaLayoutTables tests table name resolution per layout
func TestSchemaLayoutTables(t *testing.T) {
	namespaced := LayoutNamespaced.tables()
	assert.Equal(t, "rbac_roles", namespaced.roles)
	assert.Equal(t, "rbac_permissions", namespaced.permissions)
	assert.Equal(t, "rbac_role_permissions", namespaced.rolePermissions)
	assert.Equal(t, "rbac_user_roles", namespaced.userRoles)
	assert.Equal(t, "rbac_audit_log", namespaced.auditLog)

	legacy := LayoutLegacy.tables()
	assert.Equal(t, "roles", legacy.roles)
	assert.Equal(t, "permissions", legacy.permissions)
	assert.Equal(t, "role_permissions", legacy.rolePermissions)
	assert.Equal(t, "user_roles", legacy.userRoles)
	assert.Equal(t, "audit_log", legacy.auditLog)

	// An unknown layout value falls back to the current layout
	assert.Equal(t, namespaced, SchemaLayout("").tables())
}

// TestSQLStoreBindsLayout tests that construction fixes the table set
func TestSQLStoreBindsLayout(t *testing.T) {
	store := NewSQLStore(nil, LayoutLegacy)
	assert.Equal(t, LayoutLegacy, store.Layout())
	assert.Equal(t, "user_roles", store.tables.userRoles)

	store = NewSQLStore(nil, LayoutNamespaced)
	assert.Equal(t, "rbac_user_roles", store.tables.userRoles)
}
