package shared

import (
	"context"
	"fmt"
)

// Role is the closed set of back-office roles.
type Role int

const (
	// RoleHQAdmin sees every active location.
	RoleHQAdmin Role = iota + 1
	// RoleBranchManager sees its home location and everything below it.
	RoleBranchManager
)

func (r Role) String() string {
	switch r {
	case RoleHQAdmin:
		return "HQ_Admin"
	case RoleBranchManager:
		return "Branch_Manager"
	default:
		return "unknown"
	}
}

// ParseRole maps the upstream role name onto Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "HQ_Admin":
		return RoleHQAdmin, nil
	case "Branch_Manager":
		return RoleBranchManager, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

// Principal is the identity handed over by the auth layer.
type Principal struct {
	UserID         int64
	Role           Role
	HomeLocationID int64
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
