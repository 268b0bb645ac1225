package authzkit

// Principal is the authenticated actor with a materialized permission
// snapshot. Guards build one per request and place it in context so
// handlers can render affordances without further store reads. The
// snapshot is read-only; its freshness is bounded by the cache TTL.
type Principal struct {
	userID      string
	permissions PermissionSet
}

// NewPrincipal constructs a principal with a preloaded permission set.
func NewPrincipal(userID string, permissions PermissionSet) *Principal {
	if permissions == nil {
		permissions = NewPermissionSet()
	}
	return &Principal{
		userID:      userID,
		permissions: permissions,
	}
}

// UserID returns the user this principal represents.
func (p *Principal) UserID() string {
	return p.userID
}

// Can reports whether the principal satisfies the required permission,
// applying the broader-scope-implies-narrower rule. A malformed
// required string is never satisfied.
func (p *Principal) Can(required string) bool {
	parsed, err := ParsePermission(required)
	if err != nil {
		return false
	}
	return p.permissions.Satisfies(parsed)
}

// CanAny reports whether the principal satisfies any of the required
// permissions.
func (p *Principal) CanAny(required ...string) bool {
	for _, r := range required {
		if p.Can(r) {
			return true
		}
	}
	return false
}

// CanAll reports whether the principal satisfies all of the required
// permissions.
func (p *Principal) CanAll(required ...string) bool {
	for _, r := range required {
		if !p.Can(r) {
			return false
		}
	}
	return true
}

// Permissions returns the canonical names in the snapshot.
func (p *Principal) Permissions() []string {
	return p.permissions.Names()
}

// IsEmpty reports whether the principal holds no permissions at all.
func (p *Principal) IsEmpty() bool {
	return len(p.permissions) == 0
}
