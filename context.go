package authzkit

import (
	"context"
)

// Context keys for AuthzKit values.
type contextKey string

const (
	contextKeyUserID    contextKey = "authzkit:user_id"
	contextKeyActorID   contextKey = "authzkit:actor_id"
	contextKeyIPAddress contextKey = "authzkit:ip_address"
	contextKeyUserAgent contextKey = "authzkit:user_agent"
	contextKeyRequestID contextKey = "authzkit:request_id"
	contextKeyPrincipal contextKey = "authzkit:principal"
)

// WithUserID adds a user ID to the context.
// This is the user being checked for permissions.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// GetUserID retrieves the user ID from context.
// Returns empty string if not set.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(contextKeyUserID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithActorID adds an actor ID to the context.
// This is the user performing the action (for audit purposes).
// Often the same as user ID, but different for admin actions.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, contextKeyActorID, actorID)
}

// GetActorID retrieves the actor ID from context.
// Falls back to user ID if actor ID is not explicitly set.
func GetActorID(ctx context.Context) string {
	if v := ctx.Value(contextKeyActorID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return GetUserID(ctx)
}

// WithIPAddress adds the client IP address to the context (for audit).
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyIPAddress, ip)
}

// GetIPAddress retrieves the IP address from context. Returns nil when
// absent so audit rows persist an explicit NULL.
func GetIPAddress(ctx context.Context) *string {
	if v := ctx.Value(contextKeyIPAddress); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

// WithUserAgent adds the user agent to the context (for audit).
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, contextKeyUserAgent, ua)
}

// GetUserAgent retrieves the user agent from context. Returns nil when
// absent so audit rows persist an explicit NULL.
func GetUserAgent(ctx context.Context) *string {
	if v := ctx.Value(contextKeyUserAgent); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

// WithRequestID adds a request ID to the context (for correlation).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithPrincipal adds a Principal to the context.
// This is set by guard middleware and retrieved in handlers.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

// GetPrincipal retrieves the Principal from context.
// Returns nil if not set.
func GetPrincipal(ctx context.Context) *Principal {
	if v := ctx.Value(contextKeyPrincipal); v != nil {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

// FromContext retrieves the Principal from context.
// Alias for GetPrincipal for convenience.
func FromContext(ctx context.Context) *Principal {
	return GetPrincipal(ctx)
}

// AuditContext holds all audit-related information from context.
type AuditContext struct {
	ActorID   string
	IPAddress *string
	UserAgent *string
	RequestID string
}

// GetAuditContext extracts all audit information from context.
func GetAuditContext(ctx context.Context) AuditContext {
	return AuditContext{
		ActorID:   GetActorID(ctx),
		IPAddress: GetIPAddress(ctx),
		UserAgent: GetUserAgent(ctx),
		RequestID: GetRequestID(ctx),
	}
}
