package common

import (
	"context"

	"github.com/shelfgrade/shelfgrade/internal/models"
)

// ActorContext holds the authenticated actor for a request: the user
// identity from the bearer token plus their role tier. Absent (nil) means
// the request is unauthenticated.
type ActorContext struct {
	UserID string
	Email  string
	Role   string
}

type contextKey int

const actorContextKey contextKey = iota

// WithActor stores an ActorContext in the request context.
func WithActor(ctx context.Context, ac *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey, ac)
}

// ActorFromContext retrieves the ActorContext from context, or nil if absent.
func ActorFromContext(ctx context.Context) *ActorContext {
	ac, _ := ctx.Value(actorContextKey).(*ActorContext)
	return ac
}

// ResolveActorID returns the acting user's id, or "anonymous" when no
// actor is present. Used by audit records and storage writes.
func ResolveActorID(ctx context.Context) string {
	if ac := ActorFromContext(ctx); ac != nil && ac.UserID != "" {
		return ac.UserID
	}
	return "anonymous"
}

// ActorHasRole reports whether the context carries an actor whose role
// meets or exceeds the required tier.
func ActorHasRole(ctx context.Context, required string) bool {
	ac := ActorFromContext(ctx)
	if ac == nil {
		return false
	}
	return models.RoleAtLeast(ac.Role, required)
}
