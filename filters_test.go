package authzkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewAuditLogFilter tests default values
func TestNewAuditLogFilter(t *testing.T) {
	f := NewAuditLogFilter()
	assert.Equal(t, 100, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Empty(t, f.UserID)
}

// TestAuditLogFilterBuilders tests the fluent builder methods
func TestAuditLogFilterBuilders(t *testing.T) {
	since := time.Now().Add(-time.Hour)
	until := time.Now()

	f := NewAuditLogFilter().
		WithUser("user-1").
		WithEventType(EventPermissionCheck).
		WithResult(VerdictDeny).
		WithResource("contract").
		WithAction("read").
		WithTimeRange(since, until).
		WithPagination(25, 50)

	assert.Equal(t, "user-1", f.UserID)
	assert.Equal(t, EventPermissionCheck, f.EventType)
	assert.Equal(t, "DENY", f.Result)
	assert.Equal(t, "contract", f.Resource)
	assert.Equal(t, "read", f.Action)
	assert.Equal(t, since, f.Since)
	assert.Equal(t, until, f.Until)
	assert.Equal(t, 25, f.Limit)
	assert.Equal(t, 50, f.Offset)
}

// TestAuditLogFilterMatches tests row matching against each predicate
func TestAuditLogFilterMatches(t *testing.T) {
	now := time.Now().UTC()
	row := &AuditLogRow{
		UserID:    strptr("user-1"),
		EventType: EventPermissionCheck,
		Result:    strptr("DENY"),
		Resource:  strptr("contract"),
		Action:    strptr("read"),
		Timestamp: now,
	}

	tests := []struct {
		name     string
		filter   AuditLogFilter
		expected bool
	}{
		{"empty filter matches", NewAuditLogFilter(), true},
		{"matching user", NewAuditLogFilter().WithUser("user-1"), true},
		{"mismatched user", NewAuditLogFilter().WithUser("user-2"), false},
		{"matching result", NewAuditLogFilter().WithResult(VerdictDeny), true},
		{"mismatched result", NewAuditLogFilter().WithResult(VerdictAllow), false},
		{"matching resource and action", NewAuditLogFilter().WithResource("contract").WithAction("read"), true},
		{"mismatched action", NewAuditLogFilter().WithAction("write"), false},
		{"inside time range", NewAuditLogFilter().WithTimeRange(now.Add(-time.Minute), now.Add(time.Minute)), true},
		{"before since", NewAuditLogFilter().WithSince(now.Add(time.Minute)), false},
		{"after until", NewAuditLogFilter().WithUntil(now.Add(-time.Minute)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filter.matches(row))
		})
	}
}

// TestAuditLogFilterNullColumns tests that filters on NULL columns
// never match
func TestAuditLogFilterNullColumns(t *testing.T) {
	row := &AuditLogRow{
		EventType: EventRoleChange,
		Timestamp: time.Now().UTC(),
	}

	assert.False(t, NewAuditLogFilter().WithUser("user-1").matches(row))
	assert.False(t, NewAuditLogFilter().WithResult(VerdictAllow).matches(row))
	assert.False(t, NewAuditLogFilter().WithResource("contract").matches(row))
	assert.True(t, NewAuditLogFilter().WithEventType(EventRoleChange).matches(row))
}

// TestMemoryStorePagination tests limit and offset handling
func TestMemoryStorePagination(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Now().UTC()
	for i := 0; i < 10; i++ {
		_, err := store.InsertAuditEntry(ctx, &AuditLogRow{
			UserID:    strptr("user-1"),
			EventType: EventPermissionCheck,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	rows, err := store.QueryAuditLog(ctx, NewAuditLogFilter().WithLimit(3))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Newest first
	assert.Equal(t, base.Add(9*time.Second), rows[0].Timestamp)

	rows, err = store.QueryAuditLog(ctx, NewAuditLogFilter().WithPagination(3, 3))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, base.Add(6*time.Second), rows[0].Timestamp)

	rows, err = store.QueryAuditLog(ctx, NewAuditLogFilter().WithOffset(20))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
