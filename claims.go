package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose separates access, refresh and password reset tokens signed
// with the same role secret.
type TokenPurpose string

const (
	PurposeAccess        TokenPurpose = "access"
	PurposeRefresh       TokenPurpose = "refresh"
	PurposePasswordReset TokenPurpose = "password-reset"
)

// JWTClaims is the claim set of every token minted by TokenService
type JWTClaims struct {
	jwt.RegisteredClaims
	UserRole Role         `json:"role"`
	Purpose  TokenPurpose `json:"purpose"`
	Email    string       `json:"email,omitempty"`
}

// UserID returns the subject claim
func (c *JWTClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// Role returns the role claim
func (c *JWTClaims) Role() Role {
	return c.UserRole
}

// RoleName returns the role claim as a plain string
func (c *JWTClaims) RoleName() string {
	return string(c.UserRole)
}


// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Identity returns the identity exposed to downstream handlers
func (c *JWTClaims) Identity() Identity {
	return Identity{
		ID:   c.UserID(),
		Role: c.UserRole,
	}
}
