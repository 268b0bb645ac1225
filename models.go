package authzkit

import (
	"time"

	"github.com/uptrace/bun"
)

// Event types recorded in the audit trail. Generic events may use any
// other string.
const (
	EventPermissionCheck = "PERMISSION_CHECK"
	EventRoleChange      = "ROLE_CHANGE"
)

// RoleRow is a named policy bundle. Roles are long-lived reference
// data, created idempotently at bootstrap or on first use.
type RoleRow struct {
	bun.BaseModel `bun:"table:rbac_roles,alias:r"`

	ID          string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name        string    `bun:"name,notnull,unique"`
	Category    string    `bun:"category,notnull"`
	Description string    `bun:"description"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// PermissionRow is one immutable resource:action:scope triple. The
// canonical name is stored denormalized for unique lookups.
type PermissionRow struct {
	bun.BaseModel `bun:"table:rbac_permissions,alias:p"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Resource  string    `bun:"resource,notnull"`
	Action    string    `bun:"action,notnull"`
	Scope     string    `bun:"scope,notnull"`
	Name      string    `bun:"name,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// RolePermissionRow links a role to a permission. No payload; the link
// operation is idempotent so the pair is unique.
type RolePermissionRow struct {
	bun.BaseModel `bun:"table:rbac_role_permissions,alias:rp"`

	RoleID       string `bun:"role_id,pk,type:uuid"`
	PermissionID string `bun:"permission_id,pk,type:uuid"`
}

// UserRoleRow assigns a role to a user with a validity window.
// Assignments are deactivated on revoke, never deleted, preserving
// history. A nil ValidUntil is stored as SQL NULL and means the
// assignment never expires; evaluators rely on that explicit marker.
type UserRoleRow struct {
	bun.BaseModel `bun:"table:rbac_user_roles,alias:ur"`

	ID         string         `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID     string         `bun:"user_id,notnull"`
	RoleID     string         `bun:"role_id,notnull,type:uuid"`
	IsActive   bool           `bun:"is_active,notnull"`
	ValidFrom  time.Time      `bun:"valid_from,notnull"`
	ValidUntil *time.Time     `bun:"valid_until"`
	Context    map[string]any `bun:"context,type:jsonb"`
	CreatedAt  time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

// EffectiveAt reports whether the assignment is effective at time t.
func (a *UserRoleRow) EffectiveAt(t time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ValidFrom.After(t) {
		return false
	}
	return a.ValidUntil == nil || a.ValidUntil.After(t)
}

// AuditLogRow is one append-only audit trail record. Optional columns
// are pointers so that unknown values persist as explicit NULL rather
// than empty strings.
type AuditLogRow struct {
	bun.BaseModel `bun:"table:rbac_audit_log,alias:al"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID    *string   `bun:"user_id"`
	EventType string    `bun:"event_type,notnull"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`

	// Permission-check fields
	Permission *string `bun:"permission"`
	Resource   *string `bun:"resource"`
	Action     *string `bun:"action"`
	Result     *string `bun:"result"`

	// Role-change fields
	OldValue  *string `bun:"old_value"`
	NewValue  *string `bun:"new_value"`
	ChangedBy *string `bun:"changed_by"`

	// Generic event payload (serialized JSON)
	Details *string `bun:"details"`

	// Request forensics
	IPAddress *string `bun:"ip_address"`
	UserAgent *string `bun:"user_agent"`
}

// PermissionUsage is the input for a permission-check audit entry.
// Canonical is nil when the required permission failed to parse.
type PermissionUsage struct {
	UserID    string
	Canonical *string
	Result    Verdict
	IPAddress *string
	UserAgent *string
}

// ToRow converts a PermissionUsage to its audit row. An empty user ID
// (unauthenticated request) persists as NULL.
func (u *PermissionUsage) ToRow() *AuditLogRow {
	row := &AuditLogRow{
		EventType: EventPermissionCheck,
		Result:    strptr(string(u.Result)),
		IPAddress: u.IPAddress,
		UserAgent: u.UserAgent,
		Timestamp: time.Now().UTC(),
	}
	if u.UserID != "" {
		row.UserID = strptr(u.UserID)
	}
	if u.Canonical != nil {
		row.Permission = u.Canonical
		if p, err := ParsePermission(*u.Canonical); err == nil {
			row.Resource = strptr(p.Resource)
			row.Action = strptr(p.Action)
		}
	}
	return row
}

// RoleChange is the input for a role-mutation audit entry.
type RoleChange struct {
	UserID    string
	OldRoles  []string
	NewRoles  []string
	ChangedBy string
	IPAddress *string
	UserAgent *string
}

// Event is the input for a generic audit entry. UserID may be nil for
// system-originated events. Details can hold any value; serialization
// failures degrade to a partial representation.
type Event struct {
	UserID    *string
	EventType string
	Details   any
	IPAddress *string
	UserAgent *string
}

func strptr(s string) *string {
	return &s
}
