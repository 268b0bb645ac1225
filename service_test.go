package authzkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	ctx := context.Background()

	store := NewMemoryStore()
	service, err := NewService(ctx, nil, WithStore(store))
	require.NoError(t, err)

	registry := NewRegistry()
	defineTestRoles(registry)
	require.NoError(t, service.Bootstrap(ctx, registry))

	return service, store
}

// TestServiceAssignRole tests the assignment flow end to end
func TestServiceAssignRole(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	require.NoError(t, service.AssignRole(ctx, "user-1", "promoter", nil))

	assert.True(t, service.Can(ctx, "user-1", "contract:read:own"))
	assert.False(t, service.Can(ctx, "user-1", "contract:read:team"))

	// Re-assigning is a no-op success
	require.NoError(t, service.AssignRole(ctx, "user-1", "promoter", nil))
}

// TestServiceAssignUnknownRole tests the ErrRoleNotFound path
func TestServiceAssignUnknownRole(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	err := service.AssignRole(ctx, "user-1", "astronaut", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

// TestServiceRevokeRole tests revocation and cache invalidation
func TestServiceRevokeRole(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	require.NoError(t, service.AssignRole(ctx, "user-1", "manager", nil))
	assert.True(t, service.Can(ctx, "user-1", "promoter:read:team"))

	require.NoError(t, service.RevokeRole(ctx, "user-1", "manager"))
	assert.False(t, service.Can(ctx, "user-1", "promoter:read:team"))

	// Revoking again is a no-op success
	require.NoError(t, service.RevokeRole(ctx, "user-1", "manager"))
}

// TestServiceRevokePreservesHistory tests that revocation deactivates
// the assignment rather than deleting it
func TestServiceRevokePreservesHistory(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	require.NoError(t, service.AssignRole(ctx, "user-1", "manager", nil))
	require.NoError(t, service.RevokeRole(ctx, "user-1", "manager"))

	roleID, err := store.RoleID(ctx, "manager")
	require.NoError(t, err)

	store.mu.RLock()
	assignment := store.assignments["user-1"][roleID]
	store.mu.RUnlock()

	require.NotNil(t, assignment, "assignment row must survive revocation")
	assert.False(t, assignment.IsActive)
}

// TestServiceAssignRoleValidityWindow tests future-dated and expiring
// assignments
func TestServiceAssignRoleValidityWindow(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, service.AssignRole(ctx, "user-1", "promoter", &Assignment{
		ValidFrom: future,
	}))
	assert.False(t, service.Can(ctx, "user-1", "contract:read:own"),
		"future-dated assignment must not be effective yet")

	until := time.Now().UTC().Add(time.Hour)
	require.NoError(t, service.AssignRole(ctx, "user-2", "promoter", &Assignment{
		ValidUntil: &until,
	}))
	assert.True(t, service.Can(ctx, "user-2", "contract:read:own"))
}

// TestServiceRoleChangeAudited tests that assignments and revocations
// write ROLE_CHANGE entries with old and new role lists
func TestServiceRoleChangeAudited(t *testing.T) {
	ctx := WithActorID(context.Background(), "admin-1")
	service, _ := newTestService(t)

	require.NoError(t, service.AssignRole(ctx, "user-1", "promoter", nil))
	require.NoError(t, service.AssignRole(ctx, "user-1", "manager", nil))

	rows, err := service.GetAuditLog(ctx,
		NewAuditLogFilter().WithUser("user-1").WithEventType(EventRoleChange))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Newest first: the second assignment
	latest := rows[0]
	require.NotNil(t, latest.OldValue)
	assert.JSONEq(t, `["promoter"]`, *latest.OldValue)
	require.NotNil(t, latest.NewValue)
	assert.JSONEq(t, `["manager","promoter"]`, *latest.NewValue)
	require.NotNil(t, latest.ChangedBy)
	assert.Equal(t, "admin-1", *latest.ChangedBy)
}

// TestServicePrincipalFor tests principal materialization
func TestServicePrincipalFor(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	require.NoError(t, service.AssignRole(ctx, "user-1", "manager", nil))

	principal, err := service.PrincipalFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID())
	assert.True(t, principal.Can("promoter:read:team"))
	assert.True(t, principal.Can("promoter:read:own"), "team grant implies own")
	assert.False(t, principal.Can("promoter:write:all"))
}

// TestServiceMultipleRolesUnion tests that permissions union across
// roles
func TestServiceMultipleRolesUnion(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	require.NoError(t, service.AssignRole(ctx, "user-1", "promoter", nil))
	require.NoError(t, service.AssignRole(ctx, "user-1", "manager", nil))

	assert.True(t, service.Can(ctx, "user-1", "attendance:write:own"))
	assert.True(t, service.Can(ctx, "user-1", "attendance:write:team"))
	assert.False(t, service.Can(ctx, "user-1", "attendance:write:all"))
}

// TestNewServiceRequiresAuditStore tests construction with a custom
// store lacking audit support
type storeOnly struct {
	*MemoryStore
}

// hide the embedded AuditStore methods
func (s *storeOnly) InsertAuditEntry() {}
func (s *storeOnly) QueryAuditLog()    {}

func TestNewServiceRequiresAuditStore(t *testing.T) {
	_, err := NewService(context.Background(), nil, WithStore(&storeOnly{NewMemoryStore()}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	// An explicit audit store fixes it
	_, err = NewService(context.Background(), nil,
		WithStore(&storeOnly{NewMemoryStore()}),
		WithAuditStore(NewMemoryStore()))
	require.NoError(t, err)
}
