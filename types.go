package auth

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the logging contract used across services. Args are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetAPIVersion() string
	GetUserSigningKey() string
	GetAdminSigningKey() string
	GetIssuer() string
	GetAudience() string
	GetAccessTokenTTL() int
	GetRefreshTokenTTL() int
	GetResetTicketTTL() int
	GetOTPTTL() int
	GetAccessCookieName() string
	GetRefreshCookieName() string
	GetCookiePath() string
	GetCookieSecure() bool
	GetContextKey() string
}

// PasswordHasher hashes and compares plaintext passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Notifier delivers one time codes out of band
type Notifier interface {
	SendOTP(ctx context.Context, user *User, code int) error
}

// AssertionVerifier checks a third party identity assertion and returns the
// profile it vouches for.
type AssertionVerifier interface {
	VerifyAssertion(ctx context.Context, assertion string) (*FederatedProfile, error)
}

// FederatedProfile is the identity extracted from a verified assertion
type FederatedProfile struct {
	Subject       string
	Email         string
	GivenName     string
	FamilyName    string
	EmailVerified bool
}

// SlogLogger adapts a *slog.Logger to Logger
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l, or a text logger on stderr when l is nil
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &SlogLogger{l: l.With("component", "auth")}
}

func (s *SlogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func defaultLogger(l Logger) Logger {
	if l == nil {
		return NewSlogLogger(nil)
	}
	return l
}
