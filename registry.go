package authzkit

import (
	"sync"
)

// Registry holds the role-bundle definitions for the application.
// It is created at startup, seeded into the store with
// Service.Bootstrap, and should be treated as immutable afterwards.
type Registry struct {
	mu    sync.RWMutex
	roles map[string]*RoleDefinition
	order []string
}

// RoleDefinition defines one role bundle: its category and the
// canonical permissions it grants.
type RoleDefinition struct {
	name        string
	category    string
	description string
	grants      []string
	registry    *Registry
}

// NewRegistry creates a new role registry.
func NewRegistry() *Registry {
	return &Registry{
		roles: make(map[string]*RoleDefinition),
	}
}

// Define starts (or continues) defining a role bundle.
// Returns a RoleDefinition builder for fluent configuration.
//
// Example:
//
//	registry.Define("manager").Category("operations").
//	    Grants("promoter:read:team", "attendance:read:team").
//	    Define("promoter").Category("operations").
//	    Grants("promoter:read:own", "attendance:write:own")
func (r *Registry) Define(name string) *RoleDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def, ok := r.roles[name]; ok {
		return def
	}
	def := &RoleDefinition{
		name:     name,
		registry: r,
	}
	r.roles[name] = def
	r.order = append(r.order, name)
	return def
}

// Get returns the definition for a role name, or nil.
func (r *Registry) Get(name string) *RoleDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[name]
}

// Roles returns all defined role names in definition order.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Validate checks that every granted permission parses. Run this before
// Bootstrap so configuration mistakes surface at startup, not at
// evaluation time.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		for _, grant := range r.roles[name].grants {
			if _, err := ParsePermission(grant); err != nil {
				return NewError(ErrMalformedPermission, "invalid grant in role definition").
					WithRole(name).
					WithPermission(grant)
			}
		}
	}
	return nil
}

// Category sets the role's category ("system", "operations", ...).
func (d *RoleDefinition) Category(category string) *RoleDefinition {
	d.category = category
	return d
}

// Describe sets the human-readable role description.
func (d *RoleDefinition) Describe(description string) *RoleDefinition {
	d.description = description
	return d
}

// Grants adds canonical permissions to the bundle.
func (d *RoleDefinition) Grants(permissions ...string) *RoleDefinition {
	d.grants = append(d.grants, permissions...)
	return d
}

// Define continues the fluent chain with another role.
func (d *RoleDefinition) Define(name string) *RoleDefinition {
	return d.registry.Define(name)
}

// Name returns the role name.
func (d *RoleDefinition) Name() string {
	return d.name
}

// GetCategory returns the role category.
func (d *RoleDefinition) GetCategory() string {
	return d.category
}

// GetGrants returns the granted permission names.
func (d *RoleDefinition) GetGrants() []string {
	out := make([]string, len(d.grants))
	copy(out, d.grants)
	return out
}
