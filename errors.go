package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeUnauthorized        = "UNAUTHORIZED"
	TextCodeTokenNotFound       = "TOKEN_NOT_FOUND"
	TextCodeInvalidToken        = "INVALID_TOKEN"
	TextCodeUnauthorizedRole    = "UNAUTHORIZED_ROLE"
	TextCodeInvalidOtpAttempt   = "INVALID_OTP_ATTEMPT"
	TextCodeInvalidOtp          = "INVALID_OTP"
	TextCodeOtpExpired          = "OTP_EXPIRED"
	TextCodeInvalidResetTicket  = "INVALID_RESET_TICKET"
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	TextCodeValidationFailed    = "VALIDATION_FAILED"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodeInvalidTokenRequest = "INVALID_TOKEN_REQUEST"
)

// codeServiceUnavailable is the HTTP status for retryable collaborator failures.
const codeServiceUnavailable = 503

// ErrInvalidCredentials is returned by sign-in when the password does not match
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCreds)

// ErrUnauthorized is the single outcome for refresh and federated failures
var ErrUnauthorized = goerrors.New("unauthorized", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthorized)

// ErrTokenNotFound is returned by the guard when no carrier holds a token
var ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenNotFound)

// ErrInvalidToken covers signature mismatch, expiry and malformed tokens
var ErrInvalidToken = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidToken)

// ErrUnauthorizedRole is returned when an authentic token carries a role the route does not accept
var ErrUnauthorizedRole = goerrors.New("unauthorized role", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthorizedRole)

var ErrInvalidOtpAttempt = goerrors.New("invalid OTP verification attempt", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidOtpAttempt)

var ErrInvalidOtp = goerrors.New("invalid OTP", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidOtp)

var ErrOtpExpired = goerrors.New("OTP expired", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeOtpExpired)

// ErrInvalidResetTicket asks the caller to restart the recovery flow
var ErrInvalidResetTicket = goerrors.New("invalid reset token, try getting another otp code", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidResetTicket)

var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeUserNotFound)

var ErrEmailTaken = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeEmailTaken)

// ErrServiceUnavailable is the generic retryable error for directory and notifier failures
var ErrServiceUnavailable = goerrors.New("service temporarily unavailable, please retry", goerrors.CategoryOperation).
	WithCode(codeServiceUnavailable).
	WithTextCode(TextCodeServiceUnavailable)

var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeEmptyPassword)

var ErrInvalidTokenRequest = goerrors.New("token subject and role are required", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidTokenRequest)

// HasTextCode reports whether err is a rich error carrying the given text code
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsNotFound reports whether err means the user record does not exist
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return err == ErrUserNotFound || HasTextCode(err, TextCodeUserNotFound)
}

// unavailable wraps a collaborator failure into the retryable service error,
// keeping the cause for logs but not for callers.
func unavailable(err error, op string) error {
	clone := ErrServiceUnavailable.Clone()
	if clone == nil {
		return ErrServiceUnavailable
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{"operation": op})
}

// asUnavailable keeps errors that already carry the retryable text code.
func asUnavailable(err error, op string) error {
	if HasTextCode(err, TextCodeServiceUnavailable) {
		return err
	}
	return unavailable(err, op)
}

// invalidToken keeps the parser error as source of the generic invalid token error.
func invalidToken(err error) error {
	clone := ErrInvalidToken.Clone()
	if clone == nil {
		return ErrInvalidToken
	}
	clone.Source = err
	return clone
}

// unauthorized hides the cause behind the generic unauthorized error.
func unauthorized(err error) error {
	clone := ErrUnauthorized.Clone()
	if clone == nil {
		return ErrUnauthorized
	}
	clone.Source = err
	return clone
}

// isUniqueViolation matches sqlite and postgres unique constraint failures.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
