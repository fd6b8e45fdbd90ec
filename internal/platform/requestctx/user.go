// Package requestctx carries authenticated caller identity through request
// contexts.
package requestctx

import (
	"context"
	"slices"
)

// userIDContextKey is the context key for authenticated user identity.
type userIDContextKey struct{}

type rolesContextKey struct{}

// RoleAdmin grants access to operator endpoints such as manual notification emission.
const RoleAdmin = "admin"

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// WithRoles stores the caller's granted roles in context.
func WithRoles(ctx context.Context, roles []string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, rolesContextKey{}, slices.Clone(roles))
}

// HasRole reports whether the caller in ctx was granted role.
func HasRole(ctx context.Context, role string) bool {
	if ctx == nil {
		return false
	}
	roles, _ := ctx.Value(rolesContextKey{}).([]string)
	return slices.Contains(roles, role)
}
