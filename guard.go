package authzkit

import (
	"context"
	"net/http"
	"strings"
)

// GuardDecision is what the route layer receives for a guarded call.
type GuardDecision struct {
	// Allow is true for ALLOW and WOULD_BLOCK verdicts.
	Allow bool

	// Decision is the evaluator's full answer.
	Decision Decision
}

// Guard is the request-facing wrapper around the Evaluator: it resolves
// the principal from the request, evaluates the required permission,
// enforces the verdict and records the decision. Audit writes are
// fire-and-forget; enforcement never waits on audit durability.
type Guard struct {
	evaluator    *Evaluator
	audit        *AuditLogger
	getUserID    func(*http.Request) string
	errorHandler func(http.ResponseWriter, *http.Request, error)

	// auditDone, when set, is called after each asynchronous audit write
	// completes. Tests use it to synchronize.
	auditDone func()
}

// GuardOption configures the Guard.
type GuardOption func(*Guard)

// NewGuard creates a new Guard.
//
// Example:
//
//	guard := authzkit.NewGuard(evaluator, auditLogger,
//	    authzkit.WithUserIDExtractor(func(r *http.Request) string {
//	        return sessionUserID(r)
//	    }),
//	)
func NewGuard(evaluator *Evaluator, audit *AuditLogger, opts ...GuardOption) *Guard {
	g := &Guard{
		evaluator:    evaluator,
		audit:        audit,
		getUserID:    defaultGetUserID,
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithUserIDExtractor sets a custom function to extract the principal's
// user ID from an established session on the request.
func WithUserIDExtractor(fn func(*http.Request) string) GuardOption {
	return func(g *Guard) { g.getUserID = fn }
}

// WithErrorHandler sets a custom handler for blocked requests.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) GuardOption {
	return func(g *Guard) { g.errorHandler = fn }
}

func defaultGetUserID(r *http.Request) string {
	return GetUserID(r.Context())
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if IsUnauthorized(err) || IsStoreUnavailable(err) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if IsMalformedPermission(err) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// Check evaluates the required permission for the request's principal,
// records the decision and returns whether the wrapped operation may
// proceed. An unauthenticated request (no resolvable user ID) is denied
// without touching the store.
func (g *Guard) Check(r *http.Request, required string) GuardDecision {
	userID := g.getUserID(r)
	if userID == "" {
		decision := Decision{
			Verdict: VerdictDeny,
			Err:     ErrNoUserID,
		}
		// Keep the audit trail's permission column populated even though
		// the check never ran.
		if p, err := ParsePermission(required); err == nil {
			canonical := p.String()
			decision.Canonical = &canonical
		}
		g.record(r, userID, decision)
		return GuardDecision{Allow: false, Decision: decision}
	}

	decision := g.evaluator.Evaluate(r.Context(), userID, required, nil)
	g.record(r, userID, decision)
	return GuardDecision{Allow: decision.Allowed(), Decision: decision}
}

// record writes exactly one permission-check audit entry for the
// decision, detached from the request's cancellation so in-flight
// writes finish even when the caller disconnects.
func (g *Guard) record(r *http.Request, userID string, decision Decision) {
	usage := PermissionUsage{
		UserID:    userID,
		Canonical: decision.Canonical,
		Result:    decision.Verdict,
		IPAddress: ClientIP(r),
		UserAgent: UserAgent(r),
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		_, _ = g.audit.LogPermissionUsage(ctx, usage)
		if g.auditDone != nil {
			g.auditDone()
		}
	}()
}

// RequirePermission creates middleware that enforces a permission on
// every request. DENY short-circuits through the error handler; ALLOW
// and WOULD_BLOCK pass through with the Principal injected into
// context.
//
// Example:
//
//	mux.Handle("/contracts", guard.RequirePermission("contract:read:own")(listContracts))
func (g *Guard) RequirePermission(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gd := g.Check(r, required)
			if !gd.Allow {
				err := gd.Decision.Err
				if err == nil {
					err = ErrUnauthorized
				}
				g.errorHandler(w, r, err)
				return
			}

			ctx := r.Context()
			userID := g.getUserID(r)
			if set, err := g.evaluator.Resolve(ctx, userID); err == nil {
				ctx = WithPrincipal(ctx, NewPrincipal(userID, set))
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// InjectAuditContext creates middleware that extracts client metadata
// from the request and adds it to the context for role assignment and
// generic audit calls made further down the handler chain.
func (g *Guard) InjectAuditContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if ip := ClientIP(r); ip != nil {
				ctx = WithIPAddress(ctx, *ip)
			}
			if ua := UserAgent(r); ua != nil {
				ctx = WithUserAgent(ctx, *ua)
			}
			if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
				ctx = WithRequestID(ctx, requestID)
			}
			if userID := g.getUserID(r); userID != "" {
				ctx = WithUserID(ctx, userID)
				ctx = WithActorID(ctx, userID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP extracts the client address from proxy headers: the first
// X-Forwarded-For entry, else X-Real-IP, else nil. Header lookup is
// case-insensitive per net/http canonicalization.
func ClientIP(r *http.Request) *string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if first != "" {
			return &first
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return &rip
	}
	return nil
}

// UserAgent extracts the User-Agent header, nil when absent.
func UserAgent(r *http.Request) *string {
	if ua := r.Header.Get("User-Agent"); ua != "" {
		return &ua
	}
	return nil
}
