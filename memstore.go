package authzkit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store and AuditStore. It backs unit tests
// and ephemeral deployments; semantics match SQLStore, including
// idempotent upserts and append-only audit entries.
type MemoryStore struct {
	mu          sync.RWMutex
	roles       map[string]*RoleRow          // id -> role
	roleIDs     map[string]string            // name -> id
	permissions map[string]*PermissionRow    // id -> permission
	permIDs     map[string]string            // canonical name -> id
	links       map[string]map[string]bool   // role id -> permission id set
	assignments map[string]map[string]*UserRoleRow // user id -> role id -> assignment
	audit       []*AuditLogRow
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ AuditStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:       make(map[string]*RoleRow),
		roleIDs:     make(map[string]string),
		permissions: make(map[string]*PermissionRow),
		permIDs:     make(map[string]string),
		links:       make(map[string]map[string]bool),
		assignments: make(map[string]map[string]*UserRoleRow),
	}
}

// EnsurePermission gets or creates the permission row for the triple.
func (m *MemoryStore) EnsurePermission(_ context.Context, p Permission) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.String()
	if id, ok := m.permIDs[name]; ok {
		return id, nil
	}

	id := uuid.New().String()
	m.permissions[id] = &PermissionRow{
		ID:        id,
		Resource:  p.Resource,
		Action:    p.Action,
		Scope:     string(p.Scope),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	m.permIDs[name] = id
	return id, nil
}

// EnsureRole gets or creates the role row by name.
func (m *MemoryStore) EnsureRole(_ context.Context, name, category string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.roleIDs[name]; ok {
		return id, nil
	}

	id := uuid.New().String()
	m.roles[id] = &RoleRow{
		ID:        id,
		Name:      name,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
	m.roleIDs[name] = id
	return id, nil
}

// RoleID resolves a role name to its id.
func (m *MemoryStore) RoleID(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.roleIDs[name]
	if !ok {
		return "", NewError(ErrRoleNotFound, "no role with this name").WithRole(name)
	}
	return id, nil
}

// LinkPermission links a permission to a role. Linking twice is a no-op.
func (m *MemoryStore) LinkPermission(_ context.Context, roleID, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.links[roleID]
	if !ok {
		set = make(map[string]bool)
		m.links[roleID] = set
	}
	set[permissionID] = true
	return nil
}

// AssignRole upserts an assignment keyed by (user_id, role_id).
func (m *MemoryStore) AssignRole(_ context.Context, userID, roleID string, validFrom time.Time, validUntil *time.Time, attrs map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byRole, ok := m.assignments[userID]
	if !ok {
		byRole = make(map[string]*UserRoleRow)
		m.assignments[userID] = byRole
	}

	now := time.Now().UTC()
	if existing, ok := byRole[roleID]; ok {
		existing.IsActive = true
		existing.ValidFrom = validFrom
		existing.ValidUntil = validUntil
		existing.Context = attrs
		existing.UpdatedAt = now
		return nil
	}

	byRole[roleID] = &UserRoleRow{
		ID:         uuid.New().String(),
		UserID:     userID,
		RoleID:     roleID,
		IsActive:   true,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		Context:    attrs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

// RevokeRole deactivates an assignment, preserving it for history.
func (m *MemoryStore) RevokeRole(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.assignments[userID][roleID]; ok {
		a.IsActive = false
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// RoleNames returns the names of roles effective for the user at asOf.
func (m *MemoryStore) RoleNames(_ context.Context, userID string, asOf time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for roleID, a := range m.assignments[userID] {
		if !a.EffectiveAt(asOf) {
			continue
		}
		if r, ok := m.roles[roleID]; ok {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// EffectivePermissions returns the union of permissions of all roles
// reachable through assignments effective at asOf.
func (m *MemoryStore) EffectivePermissions(_ context.Context, userID string, asOf time.Time) (PermissionSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := NewPermissionSet()
	for roleID, a := range m.assignments[userID] {
		if !a.EffectiveAt(asOf) {
			continue
		}
		for permID := range m.links[roleID] {
			if p, ok := m.permissions[permID]; ok {
				set[p.Name] = struct{}{}
			}
		}
	}
	return set, nil
}

// InsertAuditEntry appends one audit row and returns its id.
func (m *MemoryStore) InsertAuditEntry(_ context.Context, row *AuditLogRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	m.audit = append(m.audit, row)
	return row.ID, nil
}

// QueryAuditLog retrieves audit entries matching the filter, newest first.
func (m *MemoryStore) QueryAuditLog(_ context.Context, filter AuditLogFilter) ([]AuditLogRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []AuditLogRow
	for _, row := range m.audit {
		if !filter.matches(row) {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
