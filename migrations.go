package authzkit

import (
	"github.com/fernandezvara/dbkit"
)

// Migrations returns all database migrations for the namespaced layout.
// Use dbkit.Migrate(ctx, service.Migrations()) to run them. Legacy
// deployments keep their existing tables; the capability probe routes
// the store to them and no migration touches that layout.
func (s *Service) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "authzkit-001",
			Description: "Create rbac_roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS rbac_roles (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    name TEXT NOT NULL UNIQUE,
                    category TEXT NOT NULL,
                    description TEXT,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "authzkit-002",
			Description: "Create rbac_permissions table",
			SQL: `
                CREATE TABLE IF NOT EXISTS rbac_permissions (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    resource TEXT NOT NULL,
                    action TEXT NOT NULL,
                    scope TEXT NOT NULL,
                    name TEXT NOT NULL UNIQUE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "authzkit-003",
			Description: "Create rbac_role_permissions table",
			SQL: `
                CREATE TABLE IF NOT EXISTS rbac_role_permissions (
                    role_id UUID NOT NULL,
                    permission_id UUID NOT NULL,
                    PRIMARY KEY (role_id, permission_id)
                )`,
		},
		{
			ID:          "authzkit-004",
			Description: "Create rbac_user_roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS rbac_user_roles (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    user_id TEXT NOT NULL,
                    role_id UUID NOT NULL,
                    is_active BOOLEAN NOT NULL DEFAULT TRUE,
                    valid_from TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    valid_until TIMESTAMPTZ,
                    context JSONB,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (user_id, role_id)
                )`,
		},
		{
			ID:          "authzkit-005",
			Description: "Create rbac_audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS rbac_audit_log (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    user_id TEXT,
                    event_type TEXT NOT NULL,
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    permission TEXT,
                    resource TEXT,
                    action TEXT,
                    result TEXT,
                    old_value TEXT,
                    new_value TEXT,
                    changed_by TEXT,
                    details TEXT,
                    ip_address TEXT,
                    user_agent TEXT
                )`,
		},
		{
			ID:          "authzkit-006",
			Description: "Index rbac_user_roles and rbac_audit_log lookups",
			SQL: `
                CREATE INDEX IF NOT EXISTS idx_rbac_user_roles_user ON rbac_user_roles (user_id) WHERE is_active;
                CREATE INDEX IF NOT EXISTS idx_rbac_audit_log_user_ts ON rbac_audit_log (user_id, timestamp)`,
		},
	}
}
