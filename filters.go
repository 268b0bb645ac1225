package authzkit

import "time"

// AuditLogFilter provides options for filtering audit log queries.
type AuditLogFilter struct {
	// Filter by the user the entry concerns
	UserID string

	// Filter by event type (PERMISSION_CHECK, ROLE_CHANGE, or any generic type)
	EventType string

	// Filter by check result (ALLOW, DENY, WOULD_BLOCK)
	Result string

	// Filter by permission resource
	Resource string

	// Filter by permission action
	Action string

	// Filter by time range
	Since time.Time
	Until time.Time

	// Pagination
	Limit  int
	Offset int
}

// NewAuditLogFilter creates a new AuditLogFilter with default values.
func NewAuditLogFilter() AuditLogFilter {
	return AuditLogFilter{
		Limit: 100,
	}
}

// WithUser sets the user ID filter.
func (f AuditLogFilter) WithUser(userID string) AuditLogFilter {
	f.UserID = userID
	return f
}

// WithEventType sets the event type filter.
func (f AuditLogFilter) WithEventType(eventType string) AuditLogFilter {
	f.EventType = eventType
	return f
}

// WithResult sets the verdict filter.
func (f AuditLogFilter) WithResult(result Verdict) AuditLogFilter {
	f.Result = string(result)
	return f
}

// WithResource sets the permission resource filter.
func (f AuditLogFilter) WithResource(resource string) AuditLogFilter {
	f.Resource = resource
	return f
}

// WithAction sets the permission action filter.
func (f AuditLogFilter) WithAction(action string) AuditLogFilter {
	f.Action = action
	return f
}

// WithTimeRange sets the time range filter.
func (f AuditLogFilter) WithTimeRange(since, until time.Time) AuditLogFilter {
	f.Since = since
	f.Until = until
	return f
}

// WithSince sets the start time filter.
func (f AuditLogFilter) WithSince(since time.Time) AuditLogFilter {
	f.Since = since
	return f
}

// WithUntil sets the end time filter.
func (f AuditLogFilter) WithUntil(until time.Time) AuditLogFilter {
	f.Until = until
	return f
}

// WithLimit sets the limit for results.
func (f AuditLogFilter) WithLimit(limit int) AuditLogFilter {
	f.Limit = limit
	return f
}

// WithOffset sets the offset for pagination.
func (f AuditLogFilter) WithOffset(offset int) AuditLogFilter {
	f.Offset = offset
	return f
}

// WithPagination sets both limit and offset.
func (f AuditLogFilter) WithPagination(limit, offset int) AuditLogFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}

// matches applies the filter to a single row. Used by MemoryStore; the
// SQL store pushes the same predicates into the query.
func (f AuditLogFilter) matches(row *AuditLogRow) bool {
	if f.UserID != "" && (row.UserID == nil || *row.UserID != f.UserID) {
		return false
	}
	if f.EventType != "" && row.EventType != f.EventType {
		return false
	}
	if f.Result != "" && (row.Result == nil || *row.Result != f.Result) {
		return false
	}
	if f.Resource != "" && (row.Resource == nil || *row.Resource != f.Resource) {
		return false
	}
	if f.Action != "" && (row.Action == nil || *row.Action != f.Action) {
		return false
	}
	if !f.Since.IsZero() && row.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && row.Timestamp.After(f.Until) {
		return false
	}
	return true
}
