package auth

import (
	"errors"
	"regexp"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// EnvConfig implements Config from environment variables
type EnvConfig struct {
	AppEnv            string `env:"APP_ENV" envDefault:"development"`
	APIVersion        string `env:"API_VERSION" envDefault:"v1"`
	HTTPAddr          string `env:"HTTP_ADDR" envDefault:":3000"`
	DatabaseURL       string `env:"DATABASE_URL" envDefault:"file:storefront.db?cache=shared"`
	UserSigningKey    string `env:"JWT_USER_SECRET"`
	AdminSigningKey   string `env:"JWT_ADMIN_SECRET"`
	Issuer            string `env:"JWT_TOKEN_ISSUER" envDefault:"storefront"`
	Audience          string `env:"JWT_TOKEN_AUDIENCE" envDefault:"storefront-api"`
	AccessTokenTTL    int    `env:"JWT_ACCESS_TOKEN_TTL" envDefault:"900"`
	RefreshTokenTTL   int    `env:"JWT_REFRESH_TOKEN_TTL" envDefault:"604800"`
	ResetTicketTTL    int    `env:"JWT_RESET_TICKET_TTL" envDefault:"600"`
	OTPTTL            int    `env:"OTP_TTL" envDefault:"300"`
	RecoveryMinMS     int    `env:"RECOVERY_MIN_RESPONSE_MS" envDefault:"250"`
	AccessCookieName  string `env:"ACCESS_COOKIE_NAME" envDefault:"access_token"`
	RefreshCookieName string `env:"REFRESH_COOKIE_NAME" envDefault:"refresh_token"`
	CookiePath        string `env:"COOKIE_PATH" envDefault:"/"`
	CookieSecure      bool   `env:"COOKIE_SECURE" envDefault:"true"`
	ContextKey        string `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	GoogleClientID    string `env:"GOOGLE_CLIENT_ID"`
	GoogleJWKSURL     string `env:"GOOGLE_JWKS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
}

var _ Config = EnvConfig{}

var apiVersionPattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

// LoadConfig reads and validates the configuration from the environment
func LoadConfig() (EnvConfig, error) {
	return ParseConfig(env.Options{})
}

// ParseConfig reads the configuration with explicit env options
func ParseConfig(opts env.Options) (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse configuration")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}
	return cfg, nil
}

// Validate checks that both role secrets are present and distinct
func (c EnvConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.UserSigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(
			&c.AdminSigningKey,
			validation.Required,
			validation.Length(16, 0),
			validation.By(func(value any) error {
				if s, _ := value.(string); s == c.UserSigningKey {
					return errors.New("must differ from the user secret")
				}
				return nil
			}),
		),
		validation.Field(&c.APIVersion, validation.Required, validation.Match(apiVersionPattern)),
		validation.Field(&c.AccessTokenTTL, validation.Required, validation.Min(1)),
		validation.Field(&c.RefreshTokenTTL, validation.Required, validation.Min(1)),
		validation.Field(&c.ResetTicketTTL, validation.Required, validation.Min(1)),
		validation.Field(&c.OTPTTL, validation.Required, validation.Min(1)),
		validation.Field(&c.RecoveryMinMS, validation.Min(0)),
		validation.Field(&c.AccessCookieName, validation.Required),
		validation.Field(&c.RefreshCookieName, validation.Required),
	)
}

// IsDevelopment reports whether the app runs in development mode
func (c EnvConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c EnvConfig) GetAPIVersion() string        { return c.APIVersion }
func (c EnvConfig) GetUserSigningKey() string    { return c.UserSigningKey }
func (c EnvConfig) GetAdminSigningKey() string   { return c.AdminSigningKey }
func (c EnvConfig) GetIssuer() string            { return c.Issuer }
func (c EnvConfig) GetAudience() string          { return c.Audience }
func (c EnvConfig) GetAccessTokenTTL() int       { return c.AccessTokenTTL }
func (c EnvConfig) GetRefreshTokenTTL() int      { return c.RefreshTokenTTL }
func (c EnvConfig) GetResetTicketTTL() int       { return c.ResetTicketTTL }
func (c EnvConfig) GetOTPTTL() int               { return c.OTPTTL }
func (c EnvConfig) GetAccessCookieName() string  { return c.AccessCookieName }
func (c EnvConfig) GetRefreshCookieName() string { return c.RefreshCookieName }
func (c EnvConfig) GetCookiePath() string        { return c.CookiePath }
func (c EnvConfig) GetCookieSecure() bool        { return c.CookieSecure }
func (c EnvConfig) GetContextKey() string        { return c.ContextKey }
