package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and verifies role scoped HS256 tokens. Each role signs
// with its own secret so a leaked user secret can not forge admin tokens.
type TokenService struct {
	secrets    RoleSecrets
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
	logger     Logger
}

// NewTokenService creates a new TokenService from cfg
func NewTokenService(cfg Config) *TokenService {
	return &TokenService{
		secrets:    NewRoleSecrets(cfg),
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		accessTTL:  seconds(cfg.GetAccessTokenTTL()),
		refreshTTL: seconds(cfg.GetRefreshTokenTTL()),
		resetTTL:   seconds(cfg.GetResetTicketTTL()),
		now:        time.Now,
		logger:     defaultLogger(nil),
	}
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	ts.logger = defaultLogger(logger)
	return ts
}

// WithClock replaces the time source used for iat, exp and validation.
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

func (ts *TokenService) AccessTTL() time.Duration  { return ts.accessTTL }
func (ts *TokenService) RefreshTTL() time.Duration { return ts.refreshTTL }

// IssueAccessToken mints a short lived access token for userID
func (ts *TokenService) IssueAccessToken(userID string, role Role) (string, time.Time, error) {
	return ts.issue(userID, role, PurposeAccess, "", ts.accessTTL)
}

// IssueRefreshToken mints a refresh token, only usable to mint access tokens
func (ts *TokenService) IssueRefreshToken(userID string, role Role) (string, time.Time, error) {
	return ts.issue(userID, role, PurposeRefresh, "", ts.refreshTTL)
}

// IssueResetTicket mints the password reset ticket handed out after a
// successful OTP verification.
func (ts *TokenService) IssueResetTicket(userID, email string, role Role) (string, time.Time, error) {
	return ts.issue(userID, role, PurposePasswordReset, email, ts.resetTTL)
}

func (ts *TokenService) issue(userID string, role Role, purpose TokenPurpose, email string, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrInvalidTokenRequest
	}

	key, ok := ts.secrets.Secret(role)
	if !ok {
		return "", time.Time{}, ErrInvalidTokenRequest
	}

	now := ts.now()
	expiresAt := now.Add(ttl)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserRole: role,
		Purpose:  purpose,
		Email:    email,
	}
	if ts.audience != "" {
		claims.RegisteredClaims.Audience = jwt.ClaimStrings{ts.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		ts.logger.Error("token service failed to sign token", "purpose", purpose, "error", err)
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, expiresAt, nil
}

// Verify checks token against the secret of the asserted role. The role is
// never taken from the unverified token.
func (ts *TokenService) Verify(tokenString string, role Role) (*JWTClaims, error) {
	key, ok := ts.secrets.Secret(role)
	if !ok {
		return nil, ErrInvalidToken
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if ts.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience))
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)
	if err != nil {
		ts.logger.Debug("token service verify failed", "role", role, "error", err)
		return nil, invalidToken(err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserRole != role || claims.UserID() == "" {
		ts.logger.Debug("token service claim mismatch", "asserted_role", role, "claim_role", claims.UserRole)
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyPurpose is Verify plus a check of the purpose claim
func (ts *TokenService) VerifyPurpose(tokenString string, role Role, purpose TokenPurpose) (*JWTClaims, error) {
	claims, err := ts.Verify(tokenString, role)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
