// Package identity carries the authenticated actor through request contexts.
//
// Authentication itself is delegated to the upstream gateway; this service
// trusts the identity it forwards and only enforces role-based gating on
// domain operations.
package identity

import "context"

// Role tags an authenticated actor with its marketplace role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor is the authenticated identity invoking an operation. For sellers the
// ID doubles as the shop identifier (one shop per seller account).
type Actor struct {
	ID    string
	Email string
	Role  Role
}

type actorKey struct{}

// WithActor returns a context carrying the given actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// FromContext extracts the actor from the context.
// The second return value is false when no actor is present.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
