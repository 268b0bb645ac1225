package authzkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fernandezvara/dbkit"
)

// AuditStore is the append-only repository behind the audit trail.
type AuditStore interface {
	// InsertAuditEntry persists one entry and returns its id.
	InsertAuditEntry(ctx context.Context, row *AuditLogRow) (string, error)

	// QueryAuditLog retrieves entries matching the filter, newest first.
	QueryAuditLog(ctx context.Context, filter AuditLogFilter) ([]AuditLogRow, error)
}

// AuditLogger records permission checks and role mutations.
//
// Failure handling is asymmetric: a structured store rejection
// (*dbkit.Error, meaning the store answered and refused the row) is
// swallowed into a nil id and a log line, so a transient audit outage
// never fails the guarded operation. Anything else (driver or transport
// failure, cancelled context) propagates to the caller so monitoring
// can tell "row rejected" from "audit subsystem unreachable".
// TODO(product): review whether the swallow-vs-propagate split should
// instead be a configurable policy.
type AuditLogger struct {
	store  AuditStore
	logger *log.Logger
}

// AuditLoggerOption configures the AuditLogger.
type AuditLoggerOption func(*AuditLogger)

// WithAuditErrorLog sets the logger that receives swallowed store errors.
func WithAuditErrorLog(l *log.Logger) AuditLoggerOption {
	return func(a *AuditLogger) { a.logger = l }
}

// NewAuditLogger creates an audit logger over the given store.
func NewAuditLogger(store AuditStore, opts ...AuditLoggerOption) *AuditLogger {
	a := &AuditLogger{
		store:  store,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LogPermissionUsage persists a permission-check entry. Returns the
// entry id, or nil when the store rejected the row.
func (a *AuditLogger) LogPermissionUsage(ctx context.Context, usage PermissionUsage) (*string, error) {
	row := usage.ToRow()
	return a.insert(ctx, row)
}

// LogRoleChange persists a role-mutation entry with the serialized old
// and new role lists.
func (a *AuditLogger) LogRoleChange(ctx context.Context, change RoleChange) (*string, error) {
	oldJSON, err := json.Marshal(orEmpty(change.OldRoles))
	if err != nil {
		return nil, NewError(ErrSerialization, err.Error())
	}
	newJSON, err := json.Marshal(orEmpty(change.NewRoles))
	if err != nil {
		return nil, NewError(ErrSerialization, err.Error())
	}

	row := &AuditLogRow{
		UserID:    strptr(change.UserID),
		EventType: EventRoleChange,
		OldValue:  strptr(string(oldJSON)),
		NewValue:  strptr(string(newJSON)),
		ChangedBy: strptr(change.ChangedBy),
		IPAddress: change.IPAddress,
		UserAgent: change.UserAgent,
		Timestamp: time.Now().UTC(),
	}
	return a.insert(ctx, row)
}

// LogAuditEvent persists a generic entry. UserID may be nil for
// system-originated events. Details that cannot be serialized fall back
// to a partial representation instead of failing.
func (a *AuditLogger) LogAuditEvent(ctx context.Context, event Event) (*string, error) {
	row := &AuditLogRow{
		UserID:    event.UserID,
		EventType: event.EventType,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Timestamp: time.Now().UTC(),
	}
	if event.Details != nil {
		row.Details = strptr(serializeDetails(event.Details))
	}
	return a.insert(ctx, row)
}

// GetAuditLog retrieves audit entries matching the filter, newest first.
func (a *AuditLogger) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]AuditLogRow, error) {
	return a.store.QueryAuditLog(ctx, filter)
}

func (a *AuditLogger) insert(ctx context.Context, row *AuditLogRow) (*string, error) {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}

	id, err := a.store.InsertAuditEntry(ctx, row)
	if err != nil {
		var storeErr *dbkit.Error
		if errors.As(err, &storeErr) {
			observeAuditFailure()
			a.logger.Printf("authzkit: audit entry rejected (%s): %v", row.EventType, err)
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

// serializeDetails marshals an audit payload, degrading to a partial
// representation when the value cannot be serialized (circular
// references, channels, funcs).
func serializeDetails(v any) string {
	b, err := json.Marshal(v)
	if err == nil {
		return string(b)
	}

	partial := map[string]string{
		"serialization_error": err.Error(),
		"value_type":          fmt.Sprintf("%T", v),
	}
	b, err = json.Marshal(partial)
	if err != nil {
		// Both keys are plain strings; this cannot fail, but never panic
		// on the audit path.
		return `{"serialization_error":"unserializable details"}`
	}
	return string(b)
}

// orEmpty keeps role lists serializing as [] rather than null.
func orEmpty(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}
