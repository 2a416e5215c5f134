package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"time"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// RecoveryService runs the OTP password recovery flow:
// request code, verify code for a reset ticket, consume the ticket.
type RecoveryService struct {
	directory UserDirectory
	tokens    *TokenService
	notifier  Notifier
	hasher    PasswordHasher
	otpTTL    time.Duration
	now       func() time.Time
	generate  func() (int, error)
	logger    Logger
	activity  activityEmitter

	// minResponse is the floor for RequestCode latency
	minResponse time.Duration
}

// NewRecoveryService creates a RecoveryService. otpTTL is the lifetime of an
// issued code.
func NewRecoveryService(directory UserDirectory, tokens *TokenService, notifier Notifier, otpTTL time.Duration) *RecoveryService {
	logger := defaultLogger(nil)
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &RecoveryService{
		directory: directory,
		tokens:    tokens,
		notifier:  notifier,
		hasher:    NewBcryptHasher(),
		otpTTL:    otpTTL,
		now:       time.Now,
		generate:  GenerateOTP,
		logger:    logger,
		activity:  activityEmitter{sink: noopActivitySink{}, logger: logger},
	}
}

func (r *RecoveryService) WithLogger(logger Logger) *RecoveryService {
	r.logger = defaultLogger(logger)
	r.activity.logger = r.logger
	return r
}

// WithMinResponseTime makes RequestCode take at least d, so a registered
// email is not told apart from an unknown one by latency. Zero disables it.
func (r *RecoveryService) WithMinResponseTime(d time.Duration) *RecoveryService {
	r.minResponse = d
	return r
}

// WithClock replaces the time source used for code expiry
func (r *RecoveryService) WithClock(now func() time.Time) *RecoveryService {
	if now != nil {
		r.now = now
		r.activity.now = now
	}
	return r
}

// WithCodeGenerator replaces the random code source
func (r *RecoveryService) WithCodeGenerator(gen func() (int, error)) *RecoveryService {
	if gen != nil {
		r.generate = gen
	}
	return r
}

func (r *RecoveryService) WithPasswordHasher(hasher PasswordHasher) *RecoveryService {
	if hasher != nil {
		r.hasher = hasher
	}
	return r
}

func (r *RecoveryService) WithActivitySink(sink ActivitySink) *RecoveryService {
	r.activity.sink = normalizeActivitySink(sink)
	return r
}

// GenerateOTP returns a uniformly random six digit code
func GenerateOTP() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return 0, err
	}
	return otpMin + int(n.Int64()), nil
}

// RequestCode issues a fresh code for email. The result is the same whether
// or not the email is registered. Any reset ticket still stored is dropped.
func (r *RecoveryService) RequestCode(ctx context.Context, email string) error {
	if r.minResponse <= 0 {
		return r.requestCode(ctx, email)
	}

	start := time.Now()
	err := r.requestCode(ctx, email)
	waitRemaining(ctx, r.minResponse-time.Since(start))
	return err
}

func (r *RecoveryService) requestCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := r.directory.FindByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			r.logger.Debug("recovery requested for unknown email")
			return nil
		}
		r.logger.Error("recovery request lookup failed", "error", err)
		return asUnavailable(err, "recovery.request")
	}

	if !user.Active {
		r.logger.Debug("recovery requested for inactive account", "user_id", user.ID.String())
		return nil
	}

	code, err := r.generate()
	if err != nil {
		return asUnavailable(err, "recovery.generate_code")
	}

	_, err = r.directory.Update(ctx, user.ID, UserPatch{
		OTP:              &OTPState{Code: code, ExpiresAt: r.now().Add(r.otpTTL)},
		ClearResetTicket: true,
	})
	if err != nil {
		r.logger.Error("recovery request persist failed", "user_id", user.ID.String(), "error", err)
		return asUnavailable(err, "recovery.store_code")
	}

	r.activity.emit(ctx, ActivityEventOTPRequested, user.ID.String(), nil)

	// the stored code stays valid when delivery fails, the caller may retry
	if err := r.notifier.SendOTP(ctx, user, code); err != nil {
		r.logger.Error("recovery code delivery failed", "user_id", user.ID.String(), "error", err)
		return asUnavailable(err, "notifier.send_otp")
	}

	return nil
}

// VerifyCode exchanges a valid code for a reset ticket. The code is cleared
// and the ticket stored in one conditional update.
func (r *RecoveryService) VerifyCode(ctx context.Context, email string, code int) (*IssuedToken, error) {
	email = normalizeEmail(email)

	user, err := r.directory.FindByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvalidOtpAttempt
		}
		return nil, asUnavailable(err, "recovery.verify")
	}

	if user.OTPCode == nil {
		return nil, ErrInvalidOtpAttempt
	}

	if *user.OTPCode != code {
		return nil, ErrInvalidOtp
	}

	now := r.now()
	if user.OTPExpiresAt == nil || !user.OTPExpiresAt.After(now) {
		return nil, ErrOtpExpired
	}

	ticket, exp, err := r.tokens.IssueResetTicket(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	ok, err := r.directory.UpdateIf(ctx, user.ID,
		UserCondition{OTPCode: &code, OTPValidAt: &now},
		UserPatch{ClearOTP: true, ResetTicket: &ticket},
	)
	if err != nil {
		return nil, asUnavailable(err, "recovery.consume_code")
	}
	if !ok {
		r.logger.Warn("recovery code consumed concurrently", "user_id", user.ID.String())
		return nil, ErrInvalidOtp
	}

	r.activity.emit(ctx, ActivityEventOTPVerified, user.ID.String(), nil)

	return &IssuedToken{Token: ticket, ExpiresAt: exp}, nil
}

// ResetPassword consumes the stored reset ticket and sets the new password.
// Password and confirmation equality is checked by the caller.
func (r *RecoveryService) ResetPassword(ctx context.Context, email, ticket, password string) error {
	email = normalizeEmail(email)

	user, err := r.directory.FindByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return ErrInvalidResetTicket
		}
		return asUnavailable(err, "recovery.reset")
	}

	if user.ResetTicket == nil || subtle.ConstantTimeCompare([]byte(*user.ResetTicket), []byte(ticket)) != 1 {
		return ErrInvalidResetTicket
	}

	claims, err := r.tokens.VerifyPurpose(ticket, user.Role, PurposePasswordReset)
	if err != nil {
		r.logger.Debug("reset ticket rejected", "user_id", user.ID.String(), "error", err)
		return ErrInvalidResetTicket
	}

	if claims.UserID() != user.ID.String() || normalizeEmail(claims.Email) != user.Email {
		return ErrInvalidResetTicket
	}

	hash, err := r.hasher.HashPassword(password)
	if err != nil {
		return err
	}

	now := r.now()
	ok, err := r.directory.UpdateIf(ctx, user.ID,
		UserCondition{ResetTicket: &ticket},
		UserPatch{PasswordHash: &hash, ClearResetTicket: true, PasswordChangedAt: &now},
	)
	if err != nil {
		return asUnavailable(err, "recovery.consume_ticket")
	}
	if !ok {
		return ErrInvalidResetTicket
	}

	r.activity.emit(ctx, ActivityEventPasswordResetSuccess, user.ID.String(), nil)

	return nil
}

// waitRemaining blocks for d or until ctx is done
func waitRemaining(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
