package auth

import (
	"context"
	"strings"
	"time"
)

// IssuedToken is a signed token and its expiration
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignInResult holds the user and the token pair minted for it
type SignInResult struct {
	User    *User       `json:"-"`
	Access  IssuedToken `json:"access_token"`
	Refresh IssuedToken `json:"refresh_token"`
}

// SignUpMessage creates a password account with the standard role
type SignUpMessage struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Auther runs sign-up, sign-in and refresh against the directory
type Auther struct {
	directory UserDirectory
	hasher    PasswordHasher
	tokens    *TokenService
	logger    Logger
	activity  activityEmitter
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(directory UserDirectory, tokens *TokenService) *Auther {
	logger := defaultLogger(nil)
	return &Auther{
		directory: directory,
		hasher:    NewBcryptHasher(),
		tokens:    tokens,
		logger:    logger,
		activity:  activityEmitter{sink: noopActivitySink{}, logger: logger},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = defaultLogger(logger)
	s.activity.logger = s.logger
	return s
}

// WithPasswordHasher replaces the bcrypt hasher
func (s *Auther) WithPasswordHasher(hasher PasswordHasher) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activity.sink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// SignUp creates an active account with role user
func (s *Auther) SignUp(ctx context.Context, msg SignUpMessage) (*User, error) {
	hash, err := s.hasher.HashPassword(msg.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.directory.Create(ctx, &User{
		Name:         strings.TrimSpace(msg.Name),
		Email:        normalizeEmail(msg.Email),
		PasswordHash: &hash,
		Role:         RoleUser,
		Active:       true,
	})
	if err != nil {
		s.logger.Error("SignUp create user error", "error", err)
		return nil, err
	}

	s.activity.emit(ctx, ActivityEventSignUp, user.ID.String(), nil)

	return user, nil
}

// SignIn authenticates credentials and issues an access and refresh token
// scoped to the user's role.
func (s *Auther) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = normalizeEmail(email)

	user, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Error("SignIn find user error", "error", err)
		s.activity.emit(ctx, ActivityEventLoginFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	if err := s.checkPassword(user, password); err != nil {
		s.logger.Warn("SignIn rejected", "user_id", user.ID.String(), "error", err)
		s.activity.emit(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	result, err := s.IssueSession(user)
	if err != nil {
		s.activity.emit(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	s.activity.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), map[string]any{
		"email": email,
	})

	return result, nil
}

func (s *Auther) checkPassword(user *User, password string) error {
	if !user.Active || !user.HasPassword() {
		return ErrInvalidCredentials
	}
	if err := s.hasher.ComparePasswordAndHash(password, *user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueSession mints the access and refresh token pair for user
func (s *Auther) IssueSession(user *User) (*SignInResult, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := s.tokens.IssueRefreshToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, err
	}

	return &SignInResult{
		User:    user,
		Access:  IssuedToken{Token: access, ExpiresAt: accessExp},
		Refresh: IssuedToken{Token: refresh, ExpiresAt: refreshExp},
	}, nil
}

// Refresh mints a new access token from a refresh token issued for
// expectedRole. The refresh token itself is not rotated. Token and subject
// failures are reported as ErrUnauthorized, directory outages as
// ErrServiceUnavailable.
func (s *Auther) Refresh(ctx context.Context, refreshToken string, expectedRole Role) (*IssuedToken, error) {
	claims, err := s.tokens.VerifyPurpose(refreshToken, expectedRole, PurposeRefresh)
	if err != nil {
		s.logger.Debug("Refresh token rejected", "role", expectedRole, "error", err)
		return nil, unauthorized(err)
	}

	user, err := s.directory.FindByID(ctx, claims.UserID())
	if err != nil {
		if IsNotFound(err) {
			return nil, unauthorized(err)
		}
		s.logger.Error("Refresh subject lookup failed", "user_id", claims.UserID(), "error", err)
		return nil, asUnavailable(err, "refresh.find_subject")
	}

	if !user.Active || user.Role != claims.Role() {
		return nil, ErrUnauthorized
	}

	access, exp, err := s.tokens.IssueAccessToken(claims.UserID(), claims.Role())
	if err != nil {
		return nil, unauthorized(err)
	}

	s.activity.emit(ctx, ActivityEventTokenRefreshed, claims.UserID(), map[string]any{
		"role": claims.RoleName(),
	})

	return &IssuedToken{Token: access, ExpiresAt: exp}, nil
}

// Profile loads the user behind an identity
func (s *Auther) Profile(ctx context.Context, identity Identity) (*User, error) {
	user, err := s.directory.FindByID(ctx, identity.ID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, asUnavailable(err, "profile.find")
	}
	if !user.Active {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// UpdateProfile renames the active user behind identity
func (s *Auther) UpdateProfile(ctx context.Context, identity Identity, name string) (*User, error) {
	user, err := s.Profile(ctx, identity)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	updated, err := s.directory.Update(ctx, user.ID, UserPatch{Name: &name})
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, asUnavailable(err, "profile.update")
	}

	s.activity.emit(ctx, ActivityEventProfileUpdated, user.ID.String(), nil)
	return updated, nil
}

// Deactivate marks the user behind identity inactive. Outstanding tokens stay
// valid until they expire but refresh and sign in are refused from then on.
func (s *Auther) Deactivate(ctx context.Context, identity Identity) error {
	user, err := s.Profile(ctx, identity)
	if err != nil {
		return err
	}

	inactive := false
	if _, err := s.directory.Update(ctx, user.ID, UserPatch{Active: &inactive}); err != nil {
		if IsNotFound(err) {
			return err
		}
		return asUnavailable(err, "profile.deactivate")
	}

	s.logger.Info("Account deactivated", "user_id", user.ID)
	s.activity.emit(ctx, ActivityEventAccountDeactivated, user.ID.String(), nil)
	return nil
}
