package authzkit

import (
	"strings"
)

// Scope is the breadth of access a permission grants.
// Scopes are ordered: own < team < all. A permission held at a broader
// scope satisfies a requirement at a narrower scope for the same
// resource and action.
type Scope string

const (
	ScopeOwn  Scope = "own"
	ScopeTeam Scope = "team"
	ScopeAll  Scope = "all"
)

// scopeRanks orders scopes by breadth. Unknown scopes rank 0 and never
// cover anything but themselves.
var scopeRanks = map[Scope]int{
	ScopeOwn:  1,
	ScopeTeam: 2,
	ScopeAll:  3,
}

// Rank returns the breadth ordering of the scope, or 0 if unknown.
func (s Scope) Rank() int {
	return scopeRanks[s]
}

// Valid reports whether the scope is one of the enumerated values.
func (s Scope) Valid() bool {
	return s.Rank() > 0
}

// Covers reports whether this scope is at least as broad as other.
func (s Scope) Covers(other Scope) bool {
	if s == other {
		return true
	}
	sr, or := s.Rank(), other.Rank()
	return sr > 0 && or > 0 && sr >= or
}

// Permission is the immutable canonical triple behind every check.
// The zero value is not a valid permission.
type Permission struct {
	Resource string
	Action   string
	Scope    Scope
}

// ParsePermission parses a canonical "resource:action:scope" string.
// Exactly two colons, no empty segments, no whitespace, lowercase.
// Failures wrap ErrMalformedPermission.
func ParsePermission(name string) (Permission, error) {
	parts := strings.Split(name, ":")
	if len(parts) != 3 {
		return Permission{}, NewError(ErrMalformedPermission,
			"permission must have exactly three colon-separated segments").
			WithPermission(name)
	}

	for _, part := range parts {
		if part == "" {
			return Permission{}, NewError(ErrMalformedPermission,
				"permission segments cannot be empty").
				WithPermission(name)
		}
		for _, c := range part {
			if !isPermissionChar(c) {
				return Permission{}, NewError(ErrMalformedPermission,
					"permission contains invalid character").
					WithPermission(name)
			}
		}
	}

	scope := Scope(parts[2])
	if !scope.Valid() {
		return Permission{}, NewError(ErrUnknownScope,
			"scope must be one of own, team, all").
			WithPermission(name)
	}

	return Permission{
		Resource: parts[0],
		Action:   parts[1],
		Scope:    scope,
	}, nil
}

// MustParsePermission is ParsePermission that panics on failure.
// Intended for registry definitions known at compile time.
func MustParsePermission(name string) Permission {
	p, err := ParsePermission(name)
	if err != nil {
		panic(err)
	}
	return p
}

func isPermissionChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// String returns the canonical "resource:action:scope" name.
// Round-trips with ParsePermission for all well-formed names.
func (p Permission) String() string {
	return p.Resource + ":" + p.Action + ":" + string(p.Scope)
}

// Implies reports whether holding this permission satisfies a
// requirement for required: same resource and action, and a scope at
// least as broad.
func (p Permission) Implies(required Permission) bool {
	if p.Resource != required.Resource || p.Action != required.Action {
		return false
	}
	return p.Scope.Covers(required.Scope)
}

// PermissionSet is a set of canonical permission names.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from canonical names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Contains reports exact membership of a canonical name.
func (ps PermissionSet) Contains(name string) bool {
	_, ok := ps[name]
	return ok
}

// Satisfies reports whether any held permission implies the required
// one, checking the exact name first and broader scopes after.
func (ps PermissionSet) Satisfies(required Permission) bool {
	if ps.Contains(required.String()) {
		return true
	}
	prefix := required.Resource + ":" + required.Action + ":"
	for name := range ps {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		held, err := ParsePermission(name)
		if err != nil {
			continue
		}
		if held.Implies(required) {
			return true
		}
	}
	return false
}

// Names returns the canonical names in the set, in no particular order.
func (ps PermissionSet) Names() []string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	return names
}

// Clone returns an independent copy of the set.
func (ps PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(ps))
	for n := range ps {
		out[n] = struct{}{}
	}
	return out
}
