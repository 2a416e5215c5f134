package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserDirectory is the persistent store of user records
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByFederatedID(ctx context.Context, federatedID string) (UserLookup, error)
	Create(ctx context.Context, user *User) (*User, error)
	Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*User, error)
	// UpdateIf applies patch only when the stored row satisfies cond.
	// It reports whether a row was changed.
	UpdateIf(ctx context.Context, id uuid.UUID, cond UserCondition, patch UserPatch) (bool, error)
}

// UserLookup is the result of a lookup that may legitimately find nothing
type UserLookup struct {
	user *User
}

// Found wraps a located user
func Found(user *User) UserLookup {
	return UserLookup{user: user}
}

// NotFound is the empty lookup
func NotFound() UserLookup {
	return UserLookup{}
}

// User returns the located user and true, or nil and false
func (l UserLookup) User() (*User, bool) {
	return l.user, l.user != nil
}

// OTPState is a pending one time code
type OTPState struct {
	Code      int
	ExpiresAt time.Time
}

// UserPatch is a partial update. Nil fields are left unchanged.
type UserPatch struct {
	Name              *string
	PasswordHash      *string
	Active            *bool
	OTP               *OTPState
	ClearOTP          bool
	ResetTicket       *string
	ClearResetTicket  bool
	PasswordChangedAt *time.Time
}

// Apply writes the patch into u
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PasswordHash != nil {
		u.PasswordHash = cloneString(p.PasswordHash)
	}
	if p.Active != nil {
		u.Active = *p.Active
	}
	if p.ClearOTP {
		u.OTPCode = nil
		u.OTPExpiresAt = nil
	}
	if p.OTP != nil {
		code := p.OTP.Code
		expires := p.OTP.ExpiresAt
		u.OTPCode = &code
		u.OTPExpiresAt = &expires
	}
	if p.ClearResetTicket {
		u.ResetTicket = nil
	}
	if p.ResetTicket != nil {
		u.ResetTicket = cloneString(p.ResetTicket)
	}
	if p.PasswordChangedAt != nil {
		u.PasswordChangedAt = cloneTime(p.PasswordChangedAt)
	}
}

type columnValue struct {
	column string
	value  any
}

// columns lists the SQL assignments for the patch
func (p UserPatch) columns() []columnValue {
	cols := make([]columnValue, 0, 6)
	if p.Name != nil {
		cols = append(cols, columnValue{"name", *p.Name})
	}
	if p.PasswordHash != nil {
		cols = append(cols, columnValue{"password_hash", *p.PasswordHash})
	}
	if p.Active != nil {
		cols = append(cols, columnValue{"active", *p.Active})
	}
	switch {
	case p.OTP != nil:
		cols = append(cols,
			columnValue{"otp_code", p.OTP.Code},
			columnValue{"otp_expires_at", p.OTP.ExpiresAt},
		)
	case p.ClearOTP:
		cols = append(cols,
			columnValue{"otp_code", nil},
			columnValue{"otp_expires_at", nil},
		)
	}
	switch {
	case p.ResetTicket != nil:
		cols = append(cols, columnValue{"reset_ticket", *p.ResetTicket})
	case p.ClearResetTicket:
		cols = append(cols, columnValue{"reset_ticket", nil})
	}
	if p.PasswordChangedAt != nil {
		cols = append(cols, columnValue{"password_changed_at", *p.PasswordChangedAt})
	}
	return cols
}

// UserCondition guards a conditional update. Nil fields are not checked.
type UserCondition struct {
	OTPCode *int
	// OTPValidAt requires otp_expires_at to be after the given instant
	OTPValidAt  *time.Time
	ResetTicket *string
}

// Matches evaluates the condition against an in memory record
func (c UserCondition) Matches(u *User) bool {
	if c.OTPCode != nil {
		if u.OTPCode == nil || *u.OTPCode != *c.OTPCode {
			return false
		}
	}
	if c.OTPValidAt != nil {
		if u.OTPExpiresAt == nil || !u.OTPExpiresAt.After(*c.OTPValidAt) {
			return false
		}
	}
	if c.ResetTicket != nil {
		if u.ResetTicket == nil || *u.ResetTicket != *c.ResetTicket {
			return false
		}
	}
	return true
}
