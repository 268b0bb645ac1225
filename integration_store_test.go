package authzkit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniqueUserID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// TestIntegrationSchemaDetection tests that migrations create the
// namespaced layout and the probe detects it
func TestIntegrationSchemaDetection(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	sqlStore, ok := service.Store().(*SQLStore)
	require.True(t, ok)
	assert.Equal(t, LayoutNamespaced, sqlStore.Layout())
}

// TestIntegrationAssignAndEvaluate tests the full path through SQL
func TestIntegrationAssignAndEvaluate(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	userID := uniqueUserID("eval")
	require.NoError(t, service.AssignRole(ctx, userID, "promoter", nil))

	assert.True(t, service.Can(ctx, userID, "contract:read:own"))
	assert.False(t, service.Can(ctx, userID, "contract:read:all"))

	require.NoError(t, service.RevokeRole(ctx, userID, "promoter"))
	assert.False(t, service.Can(ctx, userID, "contract:read:own"))
}

// TestIntegrationAssignIdempotent tests conflict handling on repeated
// assignment
func TestIntegrationAssignIdempotent(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	userID := uniqueUserID("idem")
	require.NoError(t, service.AssignRole(ctx, userID, "manager", nil))
	require.NoError(t, service.AssignRole(ctx, userID, "manager", nil))

	store := service.Store()
	now := time.Now().UTC()
	names, err := store.RoleNames(ctx, userID, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"manager"}, names)
}

// TestIntegrationValidityWindow tests NULL valid_until and expiring
// assignments through SQL
func TestIntegrationValidityWindow(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	// Never-expiring assignment
	forever := uniqueUserID("forever")
	require.NoError(t, service.AssignRole(ctx, forever, "promoter", nil))
	assert.True(t, service.Can(ctx, forever, "contract:read:own"))

	// Already-expired assignment
	expired := uniqueUserID("expired")
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, service.AssignRole(ctx, expired, "promoter", &Assignment{
		ValidFrom:  past.Add(-time.Hour),
		ValidUntil: &past,
	}))
	assert.False(t, service.Can(ctx, expired, "contract:read:own"))
}

// TestIntegrationAuditTrail tests that checks and role changes land in
// the audit table
func TestIntegrationAuditTrail(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := WithActorID(context.Background(), "integration-admin")
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	userID := uniqueUserID("audit")
	require.NoError(t, service.AssignRole(ctx, userID, "promoter", nil))

	rows, err := service.GetAuditLog(ctx,
		NewAuditLogFilter().WithUser(userID).WithEventType(EventRoleChange))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ChangedBy)
	assert.Equal(t, "integration-admin", *rows[0].ChangedBy)

	_, err = service.Audit().LogPermissionUsage(ctx, PermissionUsage{
		UserID:    userID,
		Canonical: strptr("contract:read:own"),
		Result:    VerdictAllow,
	})
	require.NoError(t, err)

	rows, err = service.GetAuditLog(ctx,
		NewAuditLogFilter().WithUser(userID).WithEventType(EventPermissionCheck))
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

// TestIntegrationHealth tests the health service extension
func TestIntegrationHealth(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	hs := NewHealthService(service)
	assert.True(t, hs.IsHealthy(ctx))
	require.NoError(t, hs.Ping(ctx))

	status := hs.Health(ctx)
	assert.True(t, status.Healthy)
}

// TestIntegrationTransactionErrorPropagates tests that an inner
// failure aborts the sequence and surfaces to the caller
func TestIntegrationTransactionErrorPropagates(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	userID := uniqueUserID("txrollback")
	err = service.Transaction(ctx, func(ctx context.Context) error {
		if err := service.AssignRole(ctx, userID, "promoter", nil); err != nil {
			return err
		}
		return fmt.Errorf("forced rollback")
	})
	require.Error(t, err)
}
