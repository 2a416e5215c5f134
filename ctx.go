package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// Identity is the authenticated caller as decoded by the guard
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// WithIdentity sets the Identity in the given context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// CurrentIdentity finds the identity in the context
func CurrentIdentity(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityCtxKey).(Identity)
	if !ok || identity.ID == "" {
		return Identity{}, false
	}
	return identity, true
}

// IdentityFromFiber reads the identity the guard stored for this request,
// first from the user context, then from the locals under key.
func IdentityFromFiber(c *fiber.Ctx, key string) (Identity, bool) {
	if identity, ok := CurrentIdentity(c.UserContext()); ok {
		return identity, true
	}

	switch claims := c.Locals(key).(type) {
	case *JWTClaims:
		return claims.Identity(), claims.UserID() != ""
	case Identity:
		return claims, claims.ID != ""
	}

	return Identity{}, false
}
