package authzkit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Verdict is the three-state outcome of a permission evaluation.
// WOULD_BLOCK decouples detecting a policy violation from enforcing it:
// operators can require a new permission, watch the trail, and only
// then turn enforcement on.
type Verdict string

const (
	VerdictAllow      Verdict = "ALLOW"
	VerdictDeny       Verdict = "DENY"
	VerdictWouldBlock Verdict = "WOULD_BLOCK"
)

// Decision is the evaluator's answer for one check. Canonical is nil
// when the required permission failed to parse. Err carries the
// resolution failure that forced a closed verdict; it never prevents a
// verdict from being rendered.
type Decision struct {
	Verdict   Verdict
	Canonical *string
	Err       error
}

// Allowed reports whether the guarded operation may proceed. Both ALLOW
// and WOULD_BLOCK pass; only DENY blocks.
func (d Decision) Allowed() bool {
	return d.Verdict != VerdictDeny
}

// Evaluator is the policy-decision point. It resolves a principal's
// effective permission set (cache-first, store on miss) and renders a
// verdict for a required permission. Evaluations are stateless and safe
// for concurrent use.
type Evaluator struct {
	store    Store
	cache    PermissionCache
	cacheTTL time.Duration
	dryRun   atomic.Bool
	shadow   *xsync.MapOf[string, bool]
	now      func() time.Time
}

// EvaluatorOption configures the Evaluator.
type EvaluatorOption func(*Evaluator)

// WithCacheTTL sets how long resolved permission sets stay cached.
func WithCacheTTL(ttl time.Duration) EvaluatorOption {
	return func(e *Evaluator) { e.cacheTTL = ttl }
}

// WithCache replaces the permission cache. Pass nil to disable caching.
func WithCache(cache PermissionCache) EvaluatorOption {
	return func(e *Evaluator) {
		if cache == nil {
			cache = noopCache{}
		}
		e.cache = cache
	}
}

// NewEvaluator creates an evaluator over the given store with an
// in-memory cache by default.
func NewEvaluator(store Store, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		store:    store,
		cache:    NewMemoryCache(),
		cacheTTL: 5 * time.Minute,
		shadow:   xsync.NewMapOf[string, bool](),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetDryRun toggles global dry-run mode. While enabled, every check
// that would DENY yields WOULD_BLOCK instead.
func (e *Evaluator) SetDryRun(on bool) {
	e.dryRun.Store(on)
}

// DryRun reports whether global dry-run mode is enabled.
func (e *Evaluator) DryRun() bool {
	return e.dryRun.Load()
}

// SetShadow marks a single permission requirement as shadow-mode.
// Checks requiring it that would DENY yield WOULD_BLOCK, independent of
// the global flag. The name must be well-formed.
func (e *Evaluator) SetShadow(permission string, on bool) error {
	p, err := ParsePermission(permission)
	if err != nil {
		return err
	}
	if on {
		e.shadow.Store(p.String(), true)
	} else {
		e.shadow.Delete(p.String())
	}
	return nil
}

// IsShadow reports whether the permission requirement is in shadow mode.
func (e *Evaluator) IsShadow(permission string) bool {
	on, ok := e.shadow.Load(permission)
	return ok && on
}

// Evaluate renders a verdict for a required permission. Errors never
// escape unresolved: a malformed requirement or an unreadable store
// always closes to DENY. Malformed input is denied even in dry-run;
// shadow mode softens policy misses, not broken callers. attrs is the
// opaque attribute map reserved for future attribute-based rules.
func (e *Evaluator) Evaluate(ctx context.Context, userID, required string, attrs map[string]any) Decision {
	parsed, err := ParsePermission(required)
	if err != nil {
		observeDecision(VerdictDeny)
		return Decision{Verdict: VerdictDeny, Err: err}
	}
	canonical := parsed.String()

	set, err := e.resolve(ctx, userID)
	if err != nil {
		observeDecision(VerdictDeny)
		return Decision{
			Verdict:   VerdictDeny,
			Canonical: &canonical,
			Err: NewError(ErrStoreUnavailable, err.Error()).
				WithPermission(canonical).
				WithUser(userID),
		}
	}

	if set.Satisfies(parsed) {
		observeDecision(VerdictAllow)
		return Decision{Verdict: VerdictAllow, Canonical: &canonical}
	}

	if e.DryRun() || e.IsShadow(canonical) {
		observeDecision(VerdictWouldBlock)
		return Decision{Verdict: VerdictWouldBlock, Canonical: &canonical}
	}

	observeDecision(VerdictDeny)
	return Decision{
		Verdict:   VerdictDeny,
		Canonical: &canonical,
		Err: NewError(ErrUnauthorized, "missing required permission").
			WithPermission(canonical).
			WithUser(userID),
	}
}

// Resolve returns the user's effective permission set, cache-first.
// Exposed so guards can build a Principal from the same snapshot.
func (e *Evaluator) Resolve(ctx context.Context, userID string) (PermissionSet, error) {
	return e.resolve(ctx, userID)
}

func (e *Evaluator) resolve(ctx context.Context, userID string) (PermissionSet, error) {
	if set, ok := e.cache.Get(userID); ok {
		observeCacheLookup(true)
		return set, nil
	}
	observeCacheLookup(false)

	set, err := e.store.EffectivePermissions(ctx, userID, e.now())
	if err != nil {
		return nil, err
	}
	e.cache.Put(userID, set, e.cacheTTL)
	return set, nil
}

// Invalidate drops the user's cached permission set. Called by the
// service after every assignment or revocation.
func (e *Evaluator) Invalidate(userID string) {
	e.cache.Invalidate(userID)
}
