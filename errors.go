package authzkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for AuthzKit operations.
var (
	// ErrMalformedPermission is returned when a permission string fails the grammar.
	ErrMalformedPermission = errors.New("authzkit: malformed permission")

	// ErrUnknownScope is returned when a permission carries an unrecognized
	// scope segment. It wraps ErrMalformedPermission so callers classifying
	// grammar failures catch both.
	ErrUnknownScope = fmt.Errorf("%w: unknown scope", ErrMalformedPermission)

	// ErrUnauthorized is returned when a principal lacks the required permission.
	ErrUnauthorized = errors.New("authzkit: unauthorized")

	// ErrStoreUnavailable is returned when the role/assignment store cannot complete a read or write.
	ErrStoreUnavailable = errors.New("authzkit: store unavailable")

	// ErrRoleNotFound is returned when a role name does not resolve to a stored role.
	ErrRoleNotFound = errors.New("authzkit: role not found")

	// ErrNoUserID is returned when user ID is not found in context.
	ErrNoUserID = errors.New("authzkit: no user ID in context")

	// ErrNoActorID is returned when actor ID is not found in context for audit.
	ErrNoActorID = errors.New("authzkit: no actor ID in context")

	// ErrSerialization is returned when an audit payload cannot be serialized at all,
	// not even partially.
	ErrSerialization = errors.New("authzkit: serialization failure")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err        error  // Underlying sentinel error
	Message    string // Additional context
	Permission string // Canonical permission involved (if applicable)
	Role       string // Role involved (if applicable)
	UserID     string // User involved (if applicable)
	ActorID    string // Actor who triggered the error (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithPermission adds the canonical permission to the error.
func (e *Error) WithPermission(permission string) *Error {
	e.Permission = permission
	return e
}

// WithRole adds role information to the error.
func (e *Error) WithRole(role string) *Error {
	e.Role = role
	return e
}

// WithUser adds user information to the error.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithActor adds actor information to the error.
func (e *Error) WithActor(actorID string) *Error {
	e.ActorID = actorID
	return e
}

// IsMalformedPermission checks if an error is a permission grammar failure.
func IsMalformedPermission(err error) bool {
	return errors.Is(err, ErrMalformedPermission)
}

// IsUnauthorized checks if an error is an authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsStoreUnavailable checks if an error is a store availability error.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
