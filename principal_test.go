package authzkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPrincipalCan tests snapshot-based checks
func TestPrincipalCan(t *testing.T) {
	p := NewPrincipal("user-1", NewPermissionSet(
		"contract:read:team",
		"attendance:write:own",
	))

	assert.Equal(t, "user-1", p.UserID())
	assert.True(t, p.Can("contract:read:own"), "team grant implies own")
	assert.True(t, p.Can("contract:read:team"))
	assert.False(t, p.Can("contract:read:all"))
	assert.False(t, p.Can("contract:write:own"))
	assert.False(t, p.Can("not-a-permission"), "malformed is never satisfied")
}

// TestPrincipalCanAnyCanAll tests the combinators
func TestPrincipalCanAnyCanAll(t *testing.T) {
	p := NewPrincipal("user-1", NewPermissionSet("contract:read:own"))

	assert.True(t, p.CanAny("contract:write:own", "contract:read:own"))
	assert.False(t, p.CanAny("contract:write:own", "promoter:read:own"))

	assert.True(t, p.CanAll("contract:read:own"))
	assert.False(t, p.CanAll("contract:read:own", "contract:write:own"))

	// Vacuous truth for no requirements
	assert.True(t, p.CanAll())
	assert.False(t, p.CanAny())
}

// TestPrincipalEmpty tests the nil-set constructor path
func TestPrincipalEmpty(t *testing.T) {
	p := NewPrincipal("user-1", nil)
	assert.True(t, p.IsEmpty())
	assert.False(t, p.Can("contract:read:own"))
	assert.Empty(t, p.Permissions())
}
