package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/storefront/go-auth/middleware/jwtware"
)

// RoleGuard authorizes access tokens for routes that accept a set of roles
type RoleGuard struct {
	tokens *TokenService
	cfg    Config
	logger Logger
}

var _ jwtware.TokenAuthorizer = (*RoleGuard)(nil)

func NewRoleGuard(tokens *TokenService, cfg Config) *RoleGuard {
	return &RoleGuard{
		tokens: tokens,
		cfg:    cfg,
		logger: defaultLogger(nil),
	}
}

func (g *RoleGuard) WithLogger(logger Logger) *RoleGuard {
	g.logger = defaultLogger(logger)
	return g
}

// Authorize verifies token with the secret of each accepted role. A token
// that only verifies under the secret of a role the route does not accept is
// authentic but denied with ErrUnauthorizedRole.
func (g *RoleGuard) Authorize(token string, roles []string) (jwtware.AuthClaims, error) {
	allowed := make(map[Role]bool, len(roles))
	for _, name := range roles {
		role, ok := ParseRole(name)
		if !ok {
			continue
		}
		allowed[role] = true
		if claims, err := g.tokens.VerifyPurpose(token, role, PurposeAccess); err == nil {
			return claims, nil
		}
	}

	for _, role := range GetAllRoles() {
		if allowed[role] {
			continue
		}
		if claims, err := g.tokens.VerifyPurpose(token, role, PurposeAccess); err == nil {
			g.logger.Debug("guard denied role", "role", claims.RoleName(), "accepted", roles)
			return nil, ErrUnauthorizedRole
		}
	}

	return nil, ErrInvalidToken
}

// Middleware returns the fiber guard for a route accepting roles. With no
// roles the route is public.
func (g *RoleGuard) Middleware(roles ...Role) fiber.Handler {
	return jwtware.New(jwtware.Config{
		Authorizer:        g,
		Roles:             rolesToStrings(roles),
		ContextKey:        g.cfg.GetContextKey(),
		TokenLookup:       "cookie:" + g.cfg.GetAccessCookieName() + ",header:" + fiber.HeaderAuthorization,
		AuthScheme:        "Bearer",
		MissingTokenError: ErrTokenNotFound,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return guardDenied(c, err)
		},
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			role, _ := ParseRole(claims.RoleName())
			return WithIdentity(ctx, Identity{ID: claims.UserID(), Role: role})
		},
	})
}

// guardDenied renders every denial as 401 with the denial text
func guardDenied(c *fiber.Ctx, err error) error {
	message := ErrInvalidToken.Message
	textCode := TextCodeInvalidToken
	switch {
	case HasTextCode(err, TextCodeTokenNotFound):
		message, textCode = ErrTokenNotFound.Message, TextCodeTokenNotFound
	case HasTextCode(err, TextCodeUnauthorizedRole):
		message, textCode = ErrUnauthorizedRole.Message, TextCodeUnauthorizedRole
	}
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Message:  message,
		TextCode: textCode,
	})
}
