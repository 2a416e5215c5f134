package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

const (
	passwordMinLength = 6
	passwordMaxLength = 20
)

// recoveryRequestedMessage is returned whether or not the email is registered
const recoveryRequestedMessage = "if the email is registered, a verification code has been sent"

// AuthController serves the auth JSON API
type AuthController struct {
	Auther    *Auther
	Recovery  *RecoveryService
	Federated *FederatedAuthenticator
	Guard     *RoleGuard
	Cookies   *CookieWriter
	Logger    Logger
	cfg       Config
}

func NewAuthController(cfg Config, auther *Auther, recovery *RecoveryService, guard *RoleGuard) *AuthController {
	return &AuthController{
		Auther:   auther,
		Recovery: recovery,
		Guard:    guard,
		Cookies:  NewCookieWriter(cfg),
		Logger:   defaultLogger(nil),
		cfg:      cfg,
	}
}

// WithFederated enables the Google sign in route
func (a *AuthController) WithFederated(federated *FederatedAuthenticator) *AuthController {
	a.Federated = federated
	return a
}

func (a *AuthController) WithLogger(logger Logger) *AuthController {
	a.Logger = defaultLogger(logger)
	return a
}

// RegisterRoutes mounts the auth routes under app
func (a *AuthController) RegisterRoutes(app fiber.Router) {
	v1 := app.Group("/" + a.cfg.GetAPIVersion())

	authGroup := v1.Group("/auth")
	authGroup.Post("/sign-up", a.SignUp)
	authGroup.Post("/sign-in", a.SignIn)
	authGroup.Post("/sign-out", a.SignOut)
	authGroup.Post("/refresh-token", a.RefreshHandler(RoleUser))
	authGroup.Post("/admin/refresh-token", a.RefreshHandler(RoleAdmin))
	authGroup.Post("/forget-password", a.ForgetPassword)
	authGroup.Post("/verify-otp", a.VerifyOTP)
	authGroup.Post("/reset-password", a.ResetPassword)
	authGroup.Get("/me", a.Guard.Middleware(RoleUser, RoleAdmin), a.Me)
	authGroup.Patch("/me", a.Guard.Middleware(RoleUser, RoleAdmin), a.UpdateMe)
	authGroup.Delete("/me", a.Guard.Middleware(RoleUser, RoleAdmin), a.DeactivateMe)

	if a.Federated != nil {
		v1.Post("/oauth/google", a.GoogleSignIn)
	}
}

// SignUpPayload is the sign up request body
type SignUpPayload struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will validate the payload
func (r SignUpPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(passwordMinLength, passwordMaxLength)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) SignUp(c *fiber.Ctx) error {
	payload := new(SignUpPayload)
	if err := bindAndValidate(c, payload); err != nil {
		return err
	}

	user, err := a.Auther.SignUp(c.UserContext(), SignUpMessage{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user": user.Profile(),
	})
}

// SignInPayload is the sign in request body
type SignInPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r SignInPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) SignIn(c *fiber.Ctx) error {
	payload := new(SignInPayload)
	if err := bindAndValidate(c, payload); err != nil {
		return err
	}

	result, err := a.Auther.SignIn(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	a.Cookies.SetSession(c, result)

	return c.JSON(sessionResponse(result))
}

func (a *AuthController) SignOut(c *fiber.Ctx) error {
	a.Cookies.Clear(c)
	return c.JSON(fiber.Map{"message": "signed out"})
}

// RefreshHandler renews the access token of a role from the refresh token
// carried by cookie or bearer header.
func (a *AuthController) RefreshHandler(role Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(a.cfg.GetRefreshCookieName())
		if raw == "" {
			raw = bearerToken(c)
		}
		if raw == "" {
			return ErrUnauthorized
		}

		access, err := a.Auther.Refresh(c.UserContext(), raw, role)
		if err != nil {
			return err
		}

		a.Cookies.SetAccess(c, *access)

		return c.JSON(fiber.Map{"access_token": access})
	}
}

// ForgetPasswordPayload starts the recovery flow
type ForgetPasswordPayload struct {
	Email string `json:"email"`
}

func (r ForgetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ForgetPassword(c *fiber.Ctx) error {
	payload := new(ForgetPasswordPayload)
	if err := bindAndValidate(c, payload); err != nil {
		return err
	}

	if err := a.Recovery.RequestCode(c.UserContext(), payload.Email); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": recoveryRequestedMessage})
}

// VerifyOTPPayload exchanges a code for a reset ticket
type VerifyOTPPayload struct {
	Email string `json:"email"`
	OTP   int    `json:"otp"`
}

func (r VerifyOTPPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.OTP, validation.Required, validation.Min(otpMin), validation.Max(otpMax)),
	)
}

func (a *AuthController) VerifyOTP(c *fiber.Ctx) error {
	payload := new(VerifyOTPPayload)
	if err := bindAndValidate(c, payload); err != nil {
		return err
	}

	ticket, err := a.Recovery.VerifyCode(c.UserContext(), payload.Email, payload.OTP)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"reset_token": ticket.Token,
		"expires_at":  ticket.ExpiresAt,
	})
}

// ResetPasswordPayload consumes a reset ticket
type ResetPasswordPayload struct {
	Email           string `json:"email"`
	ResetToken      string `json:"reset_token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.ResetToken, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(passwordMinLength, passwordMaxLength)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)
	if err := bindAndValidate(c, payload); err != nil {
		return err
	}

	if err := a.Recovery.ResetPassword(c.UserContext(), payload.Email, payload.ResetToken, payload.Password); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "password updated"})
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	identity, ok := IdentityFromFiber(c, a.cfg.GetContextKey())
	if !ok {
		return ErrUnauthorized
	}

	user, err := a.Auther.Profile(c.UserContext(), identity)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"user": user.Profile()})
}

// UpdateProfilePayload is the profile update request body
type UpdateProfilePayload struct {
	Name string `json:"name"`
}

func (r UpdateProfilePayload) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

func (a *AuthController) UpdateMe(c *fiber.Ctx) error {
	identity, ok := IdentityFromFiber(c, a.cfg.GetContextKey())
	if !ok {
		return ErrUnauthorized
	}

	payload := new(UpdateProfilePayload)
	if err := bindAndValidate(c, payload); err != nil {
		return err
	}

	user, err := a.Auther.UpdateProfile(c.UserContext(), identity, payload.Name)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"user": user.Profile()})
}

// DeactivateMe deactivates the caller and clears its cookies
func (a *AuthController) DeactivateMe(c *fiber.Ctx) error {
	identity, ok := IdentityFromFiber(c, a.cfg.GetContextKey())
	if !ok {
		return ErrUnauthorized
	}

	if err := a.Auther.Deactivate(c.UserContext(), identity); err != nil {
		return err
	}

	a.Cookies.Clear(c)
	return c.JSON(fiber.Map{"message": "account deactivated"})
}

// GoogleSignInPayload carries the Google ID token
type GoogleSignInPayload struct {
	Token string `json:"token"`
}

func (r GoogleSignInPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) GoogleSignIn(c *fiber.Ctx) error {
	payload := new(GoogleSignInPayload)
	if err := bindAndValidate(c, payload); err != nil {
		return err
	}

	result, err := a.Federated.Authenticate(c.UserContext(), payload.Token)
	if err != nil {
		return err
	}

	a.Cookies.SetSession(c, result)

	return c.JSON(sessionResponse(result))
}

func sessionResponse(result *SignInResult) fiber.Map {
	return fiber.Map{
		"user":          result.User.Profile(),
		"access_token":  result.Access,
		"refresh_token": result.Refresh,
	}
}

type validatable interface {
	Validate() error
}

func bindAndValidate(c *fiber.Ctx, payload validatable) error {
	if err := c.BodyParser(payload); err != nil {
		return malformedBody(err)
	}
	if err := payload.Validate(); err != nil {
		return validationFailed(err)
	}
	return nil
}

func bearerToken(c *fiber.Ctx) string {
	const scheme = "Bearer "
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > len(scheme) && (h[:len(scheme)] == scheme || h[:len(scheme)] == "bearer ") {
		return h[len(scheme):]
	}
	return ""
}

// ValidateStringEquals checks a field equals str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
