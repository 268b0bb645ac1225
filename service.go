package authzkit

import (
	"context"
	"log"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Service wires the store, cache, evaluator, guard and audit logger
// into one façade. It is the only type most applications construct.
//
// Error Handling:
// Database operations use dbkit's chainable error wrapping so failures
// carry operation names and preserve original error types for
// classification (dbkit.IsNotFound, dbkit.IsDuplicate, *dbkit.Error).
type Service struct {
	db        dbkit.IDB
	store     Store
	evaluator *Evaluator
	audit     *AuditLogger
	guard     *Guard
	logger    *log.Logger
}

type serviceConfig struct {
	store      Store
	auditStore AuditStore
	logger     *log.Logger
	evalOpts   []EvaluatorOption
	guardOpts  []GuardOption
	auditOpts  []AuditLoggerOption
}

// ServiceOption configures the Service.
type ServiceOption func(*serviceConfig)

// WithStore replaces the schema-probed SQL store, e.g. with a
// MemoryStore. If the store also implements AuditStore it backs the
// audit trail too, unless WithAuditStore overrides it.
func WithStore(store Store) ServiceOption {
	return func(c *serviceConfig) { c.store = store }
}

// WithAuditStore replaces the audit trail repository.
func WithAuditStore(store AuditStore) ServiceOption {
	return func(c *serviceConfig) { c.auditStore = store }
}

// WithLogger sets the logger for non-fatal conditions (failed links,
// rejected audit rows).
func WithLogger(l *log.Logger) ServiceOption {
	return func(c *serviceConfig) { c.logger = l }
}

// WithEvaluatorOptions forwards options to the Evaluator.
func WithEvaluatorOptions(opts ...EvaluatorOption) ServiceOption {
	return func(c *serviceConfig) { c.evalOpts = append(c.evalOpts, opts...) }
}

// WithGuardOptions forwards options to the Guard.
func WithGuardOptions(opts ...GuardOption) ServiceOption {
	return func(c *serviceConfig) { c.guardOpts = append(c.guardOpts, opts...) }
}

// WithAuditOptions forwards options to the AuditLogger.
func WithAuditOptions(opts ...AuditLoggerOption) ServiceOption {
	return func(c *serviceConfig) { c.auditOpts = append(c.auditOpts, opts...) }
}

// NewService creates the authorization service. With no WithStore
// override it probes the database catalog once to pick the schema
// layout and binds a SQLStore to it.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service, err := authzkit.NewService(ctx, db)
func NewService(ctx context.Context, db dbkit.IDB, opts ...ServiceOption) (*Service, error) {
	cfg := &serviceConfig{
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	auditStore := cfg.auditStore
	if store == nil {
		layout, err := DetectSchemaLayout(ctx, db)
		if err != nil {
			return nil, err
		}
		sqlStore := NewSQLStore(db, layout)
		store = sqlStore
		if auditStore == nil {
			auditStore = sqlStore
		}
	}
	if auditStore == nil {
		if as, ok := store.(AuditStore); ok {
			auditStore = as
		} else {
			return nil, NewError(ErrStoreUnavailable, "no audit store configured")
		}
	}

	auditOpts := append([]AuditLoggerOption{WithAuditErrorLog(cfg.logger)}, cfg.auditOpts...)

	s := &Service{
		db:        db,
		store:     store,
		evaluator: NewEvaluator(store, cfg.evalOpts...),
		audit:     NewAuditLogger(auditStore, auditOpts...),
		logger:    cfg.logger,
	}
	s.guard = NewGuard(s.evaluator, s.audit, cfg.guardOpts...)
	return s, nil
}

// Store returns the role and assignment store.
func (s *Service) Store() Store {
	return s.store
}

// Evaluator returns the permission evaluator.
func (s *Service) Evaluator() *Evaluator {
	return s.evaluator
}

// Guard returns the request-facing guard.
func (s *Service) Guard() *Guard {
	return s.guard
}

// Audit returns the audit logger.
func (s *Service) Audit() *AuditLogger {
	return s.audit
}

// Bootstrap seeds the registry's role bundles into the store. All
// operations are idempotent upserts, so Bootstrap can run on every
// startup. A single failed permission link is logged and skipped; it
// must not abort seeding the rest of the bundle.
func (s *Service) Bootstrap(ctx context.Context, registry *Registry) error {
	if err := registry.Validate(); err != nil {
		return err
	}

	for _, name := range registry.Roles() {
		def := registry.Get(name)
		roleID, err := s.store.EnsureRole(ctx, def.name, def.category)
		if err != nil {
			return err
		}

		for _, grant := range def.grants {
			p, err := ParsePermission(grant)
			if err != nil {
				// Validate already ran; an unparsable grant here means the
				// registry mutated mid-bootstrap. Skip it, fail closed.
				s.logger.Printf("authzkit: skipping malformed grant %q for role %q", grant, name)
				continue
			}
			permID, err := s.store.EnsurePermission(ctx, p)
			if err != nil {
				s.logger.Printf("authzkit: ensure permission %q for role %q: %v", grant, name, err)
				continue
			}
			if err := s.store.LinkPermission(ctx, roleID, permID); err != nil {
				s.logger.Printf("authzkit: link permission %q to role %q: %v", grant, name, err)
			}
		}
	}
	return nil
}

// Assignment carries the optional parameters of a role assignment.
type Assignment struct {
	// ValidFrom defaults to now when zero.
	ValidFrom time.Time

	// ValidUntil nil means the assignment never expires.
	ValidUntil *time.Time

	// Context is an opaque attribute map (tenant, company) reserved for
	// attribute-based rules.
	Context map[string]any
}

// AssignRole grants a role to a user. The upsert is keyed by
// (user, role), so re-assigning is a no-op success. The user's cached
// permission set is invalidated and a ROLE_CHANGE entry is recorded
// with the role lists before and after.
func (s *Service) AssignRole(ctx context.Context, userID, roleName string, opt *Assignment) error {
	roleID, err := s.store.RoleID(ctx, roleName)
	if err != nil {
		return err
	}

	if opt == nil {
		opt = &Assignment{}
	}
	validFrom := opt.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now().UTC()
	}

	oldRoles, err := s.store.RoleNames(ctx, userID, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := s.store.AssignRole(ctx, userID, roleID, validFrom, opt.ValidUntil, opt.Context); err != nil {
		return err
	}
	s.evaluator.Invalidate(userID)

	s.recordRoleChange(ctx, userID, oldRoles)
	return nil
}

// RevokeRole deactivates a user's role assignment, preserving history.
func (s *Service) RevokeRole(ctx context.Context, userID, roleName string) error {
	roleID, err := s.store.RoleID(ctx, roleName)
	if err != nil {
		return err
	}

	oldRoles, err := s.store.RoleNames(ctx, userID, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := s.store.RevokeRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.evaluator.Invalidate(userID)

	s.recordRoleChange(ctx, userID, oldRoles)
	return nil
}

// recordRoleChange audits a role mutation. Audit problems never fail
// the mutation itself; they are logged.
func (s *Service) recordRoleChange(ctx context.Context, userID string, oldRoles []string) {
	newRoles, err := s.store.RoleNames(ctx, userID, time.Now().UTC())
	if err != nil {
		s.logger.Printf("authzkit: reading roles for audit of user %s: %v", userID, err)
		return
	}

	audit := GetAuditContext(ctx)
	changedBy := audit.ActorID
	if changedBy == "" {
		changedBy = userID
	}

	if _, err := s.audit.LogRoleChange(ctx, RoleChange{
		UserID:    userID,
		OldRoles:  oldRoles,
		NewRoles:  newRoles,
		ChangedBy: changedBy,
		IPAddress: audit.IPAddress,
		UserAgent: audit.UserAgent,
	}); err != nil {
		s.logger.Printf("authzkit: audit role change for user %s: %v", userID, err)
	}
}

// Can evaluates a permission for a user and reports whether the
// operation may proceed (ALLOW or WOULD_BLOCK).
func (s *Service) Can(ctx context.Context, userID, permission string) bool {
	return s.evaluator.Evaluate(ctx, userID, permission, nil).Allowed()
}

// PrincipalFor materializes the user's permission snapshot.
func (s *Service) PrincipalFor(ctx context.Context, userID string) (*Principal, error) {
	set, err := s.evaluator.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewPrincipal(userID, set), nil
}

// GetAuditLog retrieves audit log entries with optional filters.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]AuditLogRow, error) {
	return s.audit.GetAuditLog(ctx, filter)
}
