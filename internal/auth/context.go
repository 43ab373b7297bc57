// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithUser/UserFromContext for propagating the verified user via context

package auth

import (
	"context"
)

// userContextKey is the key type for storing a User in context.Context.
type userContextKey struct{}

// WithUser returns a new context with the user attached.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the user from the context, returning nil if not present.
func UserFromContext(ctx context.Context) *User {
	user, ok := ctx.Value(userContextKey{}).(*User)
	if !ok {
		return nil
	}
	return user
}
