package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/storefront/go-auth"
)

const defaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// DefaultIssuers are the issuers Google puts in ID tokens
func DefaultIssuers() []string {
	return []string{"accounts.google.com", "https://accounts.google.com"}
}

// Config holds Google ID token verification options.
type Config struct {
	// ClientID is the expected audience. Required.
	ClientID string
	JWKSURL  string
	Issuers  []string
	// RequireVerifiedEmail rejects tokens whose email_verified claim is false
	RequireVerifiedEmail bool
	// Keyfunc overrides the remote JWKS, mostly for tests
	Keyfunc jwt.Keyfunc
	Now     func() time.Time
	Logger  auth.Logger
}

// Verifier implements auth.AssertionVerifier for Google ID tokens.
type Verifier struct {
	config Config
	jwks   *keyfunc.JWKS
}

var _ auth.AssertionVerifier = (*Verifier)(nil)

// New creates a Verifier. Without a Keyfunc the Google JWKS is fetched and
// refreshed in the background until Close.
func New(cfg Config) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("google: client id is required")
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = defaultJWKSURL
	}
	if len(cfg.Issuers) == 0 {
		cfg.Issuers = DefaultIssuers()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = auth.NewSlogLogger(nil)
	}

	v := &Verifier{config: cfg}

	if cfg.Keyfunc == nil {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshErrorHandler: refreshErrorHandler(cfg.Logger),
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, fmt.Errorf("google: failed to load JWKS: %w", err)
		}
		v.jwks = jwks
		v.config.Keyfunc = jwks.Keyfunc
	}

	return v, nil
}

func refreshErrorHandler(logger auth.Logger) keyfunc.ErrorHandler {
	return func(err error) {
		logger.Warn("google: failed to do a background refresh of JWT set", "error", err)
	}
}

// Close stops the background JWKS refresh
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// VerifyAssertion implements auth.AssertionVerifier.
func (v *Verifier) VerifyAssertion(ctx context.Context, assertion string) (*auth.FederatedProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(assertion, claims, v.config.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.config.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.config.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("google: invalid id token: %w", err)
	}

	if !v.validIssuer(claims.Issuer) {
		return nil, fmt.Errorf("google: unexpected issuer %q", claims.Issuer)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("google: id token has no subject")
	}

	if claims.Email == "" {
		return nil, fmt.Errorf("google: id token has no email")
	}

	verified := emailVerified(claims.EmailVerified)
	if v.config.RequireVerifiedEmail && !verified {
		return nil, fmt.Errorf("google: email not verified")
	}

	return &auth.FederatedProfile{
		Subject:       claims.Subject,
		Email:         claims.Email,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		EmailVerified: verified,
	}, nil
}

func (v *Verifier) validIssuer(iss string) bool {
	for _, allowed := range v.config.Issuers {
		if iss == allowed {
			return true
		}
	}
	return false
}

// emailVerified accepts both the boolean and the string form Google uses
func emailVerified(raw any) bool {
	switch val := raw.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	default:
		return false
	}
}
