package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/daybook/daybook/internal/model"
)

// ErrUnauthorized is returned when a request carries no resolvable caller.
var ErrUnauthorized = errors.New("unauthorized")

// CurrentUserFunc resolves the caller of a request.
// It returns ErrUnauthorized when no valid session is presented.
type CurrentUserFunc func(r *http.Request) (model.Identity, error)

type contextKey string

const identityContextKey contextKey = "identity"

// ContextWithIdentity adds the caller identity to the context.
func ContextWithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the caller identity.
// The boolean is false if the request was not authenticated.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok || id.IsZero() {
		return model.Identity{}, false
	}
	return id, true
}

// UserIDFromContext is a convenience function to get the caller's user ID.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
