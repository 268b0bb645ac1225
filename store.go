package authzkit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// Store is the persistence-agnostic accessor for roles, role-permission
// links and user-role assignments. All write operations are idempotent
// upserts so retries are always safe. Implementations: SQLStore for the
// relational layouts, MemoryStore for tests and ephemeral use.
type Store interface {
	// EnsurePermission gets or creates the permission row for the triple.
	EnsurePermission(ctx context.Context, p Permission) (string, error)

	// EnsureRole gets or creates the role row by name.
	EnsureRole(ctx context.Context, name, category string) (string, error)

	// LinkPermission links a permission to a role. No duplicate rows.
	LinkPermission(ctx context.Context, roleID, permissionID string) error

	// RoleID resolves a role name to its id. ErrRoleNotFound when absent.
	RoleID(ctx context.Context, name string) (string, error)

	// AssignRole upserts an assignment keyed by (user_id, role_id).
	// Re-assigning an already-effective role is a no-op success.
	// validUntil == nil means the assignment never expires.
	AssignRole(ctx context.Context, userID, roleID string, validFrom time.Time, validUntil *time.Time, attrs map[string]any) error

	// RevokeRole deactivates an assignment, preserving history.
	RevokeRole(ctx context.Context, userID, roleID string) error

	// RoleNames returns the names of roles effective for the user at asOf.
	RoleNames(ctx context.Context, userID string, asOf time.Time) ([]string, error)

	// EffectivePermissions returns the union of permissions of all roles
	// reachable through assignments effective at asOf.
	EffectivePermissions(ctx context.Context, userID string, asOf time.Time) (PermissionSet, error)
}

// SQLStore implements Store and AuditStore over dbkit/bun. The physical
// table set is fixed at construction from the detected schema layout.
type SQLStore struct {
	db     dbkit.IDB
	layout SchemaLayout
	tables tableSet
}

var (
	_ Store      = (*SQLStore)(nil)
	_ AuditStore = (*SQLStore)(nil)
)

// NewSQLStore creates a store bound to the given layout.
func NewSQLStore(db dbkit.IDB, layout SchemaLayout) *SQLStore {
	return &SQLStore{
		db:     db,
		layout: layout,
		tables: layout.tables(),
	}
}

// Layout returns the schema layout the store was bound to.
func (s *SQLStore) Layout() SchemaLayout {
	return s.layout
}

// EnsurePermission gets or creates the permission row for the triple.
func (s *SQLStore) EnsurePermission(ctx context.Context, p Permission) (string, error) {
	row := &PermissionRow{
		Resource: p.Resource,
		Action:   p.Action,
		Scope:    string(p.Scope),
		Name:     p.String(),
	}

	result, err := s.db.NewInsert().
		Model(row).
		ModelTableExpr("? AS p", bun.Ident(s.tables.permissions)).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "EnsurePermission").Err(); err != nil {
		return "", err
	}

	return s.permissionIDByName(ctx, p.String())
}

func (s *SQLStore) permissionIDByName(ctx context.Context, name string) (string, error) {
	var id string
	err := dbkit.WithErr1(s.db.NewRaw(
		"SELECT id FROM ? WHERE name = ?",
		bun.Ident(s.tables.permissions), name).Scan(ctx, &id), "PermissionIDByName").Err()
	if err != nil {
		return "", err
	}
	return id, nil
}

// EnsureRole gets or creates the role row by name.
func (s *SQLStore) EnsureRole(ctx context.Context, name, category string) (string, error) {
	row := &RoleRow{
		Name:     name,
		Category: category,
	}

	result, err := s.db.NewInsert().
		Model(row).
		ModelTableExpr("? AS r", bun.Ident(s.tables.roles)).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "EnsureRole").Err(); err != nil {
		return "", err
	}

	return s.RoleID(ctx, name)
}

// RoleID resolves a role name to its id.
func (s *SQLStore) RoleID(ctx context.Context, name string) (string, error) {
	var id string
	err := dbkit.WithErr1(s.db.NewRaw(
		"SELECT id FROM ? WHERE name = ?",
		bun.Ident(s.tables.roles), name).Scan(ctx, &id), "RoleID").Err()
	if err != nil {
		if dbkit.IsNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return "", NewError(ErrRoleNotFound, "no role with this name").WithRole(name)
		}
		return "", err
	}
	return id, nil
}

// LinkPermission links a permission to a role. Linking twice is a no-op.
func (s *SQLStore) LinkPermission(ctx context.Context, roleID, permissionID string) error {
	row := &RolePermissionRow{
		RoleID:       roleID,
		PermissionID: permissionID,
	}

	result, err := s.db.NewInsert().
		Model(row).
		ModelTableExpr("? AS rp", bun.Ident(s.tables.rolePermissions)).
		On("CONFLICT (role_id, permission_id) DO NOTHING").
		Exec(ctx)
	return dbkit.WithErr(result, err, "LinkPermission").Err()
}

// AssignRole upserts an assignment keyed by (user_id, role_id).
func (s *SQLStore) AssignRole(ctx context.Context, userID, roleID string, validFrom time.Time, validUntil *time.Time, attrs map[string]any) error {
	row := &UserRoleRow{
		UserID:     userID,
		RoleID:     roleID,
		IsActive:   true,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		Context:    attrs,
	}

	result, err := s.db.NewInsert().
		Model(row).
		ModelTableExpr("? AS ur", bun.Ident(s.tables.userRoles)).
		On("CONFLICT (user_id, role_id) DO UPDATE").
		Set("is_active = TRUE").
		Set("valid_from = EXCLUDED.valid_from").
		Set("valid_until = EXCLUDED.valid_until").
		Set("context = EXCLUDED.context").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	return dbkit.WithErr(result, err, "AssignRole").Err()
}

// RevokeRole deactivates an assignment. Revoking an absent or already
// inactive assignment is a no-op success.
func (s *SQLStore) RevokeRole(ctx context.Context, userID, roleID string) error {
	result, err := s.db.NewUpdate().
		Model((*UserRoleRow)(nil)).
		ModelTableExpr("? AS ur", bun.Ident(s.tables.userRoles)).
		Set("is_active = FALSE").
		Set("updated_at = current_timestamp").
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Exec(ctx)
	return dbkit.WithErr(result, err, "RevokeRole").Err()
}

// RoleNames returns the names of roles effective for the user at asOf.
func (s *SQLStore) RoleNames(ctx context.Context, userID string, asOf time.Time) ([]string, error) {
	var names []string
	err := dbkit.WithErr1(s.db.NewRaw(
		`SELECT r.name FROM ? AS r
         JOIN ? AS ur ON ur.role_id = r.id
         WHERE ur.user_id = ? AND ur.is_active = TRUE
           AND ur.valid_from <= ?
           AND (ur.valid_until IS NULL OR ur.valid_until > ?)
         ORDER BY r.name`,
		bun.Ident(s.tables.roles), bun.Ident(s.tables.userRoles),
		userID, asOf, asOf).Scan(ctx, &names), "RoleNames").Err()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return names, nil
}

// EffectivePermissions returns the union of permissions of all roles
// reachable through assignments effective at asOf.
func (s *SQLStore) EffectivePermissions(ctx context.Context, userID string, asOf time.Time) (PermissionSet, error) {
	var names []string
	err := dbkit.WithErr1(s.db.NewRaw(
		`SELECT DISTINCT p.name FROM ? AS p
         JOIN ? AS rp ON rp.permission_id = p.id
         JOIN ? AS ur ON ur.role_id = rp.role_id
         WHERE ur.user_id = ? AND ur.is_active = TRUE
           AND ur.valid_from <= ?
           AND (ur.valid_until IS NULL OR ur.valid_until > ?)`,
		bun.Ident(s.tables.permissions), bun.Ident(s.tables.rolePermissions),
		bun.Ident(s.tables.userRoles),
		userID, asOf, asOf).Scan(ctx, &names), "EffectivePermissions").Err()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewPermissionSet(), nil
		}
		return nil, err
	}
	return NewPermissionSet(names...), nil
}

// InsertAuditEntry persists one audit row and returns its id.
func (s *SQLStore) InsertAuditEntry(ctx context.Context, row *AuditLogRow) (string, error) {
	result, err := s.db.NewInsert().
		Model(row).
		ModelTableExpr("? AS al", bun.Ident(s.tables.auditLog)).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "InsertAuditEntry").Err(); err != nil {
		return "", err
	}
	return row.ID, nil
}

// QueryAuditLog retrieves audit entries matching the filter, newest first.
func (s *SQLStore) QueryAuditLog(ctx context.Context, filter AuditLogFilter) ([]AuditLogRow, error) {
	var rows []AuditLogRow
	q := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr("? AS al", bun.Ident(s.tables.auditLog))
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.Result != "" {
		q = q.Where("result = ?", filter.Result)
	}
	if filter.Resource != "" {
		q = q.Where("resource = ?", filter.Resource)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("timestamp DESC")
	if err := dbkit.WithErr1(q.Scan(ctx), "QueryAuditLog").Err(); err != nil {
		return nil, err
	}

	return rows, nil
}
