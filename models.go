package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name              string     `bun:"name,notnull" json:"name"`
	Email             string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash      *string    `bun:"password_hash" json:"-"`
	Role              Role       `bun:"user_role,notnull" json:"role"`
	GoogleID          *string    `bun:"google_id,unique" json:"-"`
	Active            bool       `bun:"active,notnull" json:"active"`
	OTPCode           *int       `bun:"otp_code" json:"-"`
	OTPExpiresAt      *time.Time `bun:"otp_expires_at" json:"-"`
	ResetTicket       *string    `bun:"reset_ticket" json:"-"`
	PasswordChangedAt *time.Time `bun:"password_changed_at" json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// HasPassword reports whether the account can sign in with a password.
// Federated only accounts have none.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = cloneString(u.PasswordHash)
	c.GoogleID = cloneString(u.GoogleID)
	c.ResetTicket = cloneString(u.ResetTicket)
	c.OTPCode = cloneInt(u.OTPCode)
	c.OTPExpiresAt = cloneTime(u.OTPExpiresAt)
	c.PasswordChangedAt = cloneTime(u.PasswordChangedAt)
	return &c
}

// UserProfile is the public rendering of a user
type UserProfile struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Role              Role       `json:"role"`
	Active            bool       `json:"active"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Profile returns the public view of the user
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:                u.ID.String(),
		Name:              u.Name,
		Email:             u.Email,
		Role:              u.Role,
		Active:            u.Active,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
