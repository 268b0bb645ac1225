// Package authzkit provides a role-based access control engine with a
// three-state permission evaluator, per-user permission caching and a
// durable audit trail of every decision.
//
// AuthzKit is the policy-decision point for multi-tenant applications:
// every protected operation asks the evaluator whether a principal may
// perform it, and every answer is recorded. Decisions are never boolean.
// A check yields ALLOW, DENY or WOULD_BLOCK, where WOULD_BLOCK is the
// dry-run outcome: the caller is let through, but the would-have-failed
// decision is logged so a new rule can be observed in production before
// it is enforced.
//
// # Core Concepts
//
// Permission: a canonical triple "resource:action:scope", e.g.
// "contract:read:own". Scope is one of own, team, all, ordered
// own < team < all. Holding a broader scope satisfies a narrower
// requirement for the same resource and action: "contract:read:all"
// implies "contract:read:own".
//
// Role: a named bundle of permissions ("admin", "manager", "promoter").
// Users receive roles through assignments with validity windows; a
// user's effective permission set is the union over all currently
// effective assignments.
//
// Verdict: ALLOW, DENY or WOULD_BLOCK. Malformed permission strings and
// store failures always resolve to DENY (fail closed).
//
// Audit trail: append-only entries for every permission check and every
// role mutation, including client IP and user agent when known.
//
// # Basic Usage
//
//	// 1. Define your role bundles (at application startup)
//	registry := authzkit.NewRegistry()
//	registry.Define("admin").Category("system").
//	    Grants("promoter:read:all", "promoter:write:all", "contract:read:all")
//	registry.Define("promoter").Category("operations").
//	    Grants("promoter:read:own", "attendance:write:own")
//
//	// 2. Create the service
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service, _ := authzkit.NewService(ctx, db)
//
//	// 3. Run migrations and seed the role bundles
//	db.Migrate(ctx, service.Migrations())
//	service.Bootstrap(ctx, registry)
//
//	// 4. Assign roles
//	service.AssignRole(ctx, userID, "promoter", nil)
//
//	// 5. Guard HTTP routes
//	guard := service.Guard()
//	mux.Handle("/contracts", guard.RequirePermission("contract:read:own")(listContracts))
//
// # Dry-run rollout
//
// To introduce a new permission requirement without breaking traffic,
// enable shadow mode for it first:
//
//	service.Evaluator().SetShadow("workpermit:renew:team", true)
//
// Failing checks now return WOULD_BLOCK, requests proceed, and the
// audit trail shows who would have been blocked. Clear the shadow flag
// once the trail looks right and the rule starts enforcing.
package authzkit
