package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Message  string            `json:"message"`
	TextCode string            `json:"text_code,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// CookieWriter writes the token carriers. Both cookies are http-only and
// SameSite strict, and expire with the token they carry.
type CookieWriter struct {
	cfg Config
	now func() time.Time
}

func NewCookieWriter(cfg Config) *CookieWriter {
	return &CookieWriter{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source used when clearing cookies
func (w *CookieWriter) WithClock(now func() time.Time) *CookieWriter {
	if now != nil {
		w.now = now
	}
	return w
}

func (w *CookieWriter) SetAccess(c *fiber.Ctx, token IssuedToken) {
	w.set(c, w.cfg.GetAccessCookieName(), token)
}

func (w *CookieWriter) SetRefresh(c *fiber.Ctx, token IssuedToken) {
	w.set(c, w.cfg.GetRefreshCookieName(), token)
}

func (w *CookieWriter) SetSession(c *fiber.Ctx, result *SignInResult) {
	w.SetAccess(c, result.Access)
	w.SetRefresh(c, result.Refresh)
}

// Clear expires both carriers. Safe to call without an active session.
func (w *CookieWriter) Clear(c *fiber.Ctx) {
	w.cookieDel(c, w.cfg.GetAccessCookieName())
	w.cookieDel(c, w.cfg.GetRefreshCookieName())
}

func (w *CookieWriter) set(c *fiber.Ctx, name string, token IssuedToken) {
	maxAge := int(token.ExpiresAt.Sub(w.now()).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    token.Token,
		Path:     w.cfg.GetCookiePath(),
		Expires:  token.ExpiresAt,
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   w.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (w *CookieWriter) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     w.cfg.GetCookiePath(),
		Expires:  w.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   w.cfg.GetCookieSecure(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// NewErrorHandler renders rich errors with their HTTP code. Anything else is
// reported as a generic 500.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = defaultLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			var fiberErr *fiber.Error
			if goerrors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).JSON(ErrorResponse{Message: fiberErr.Message})
			}
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		code := richErr.Code
		if code == 0 {
			code = fiber.StatusInternalServerError
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error(
				"request failed",
				"path", c.Path(),
				"error", err,
				"category", richErr.Category,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			logger.Debug("request rejected", "path", c.Path(), "text_code", richErr.TextCode)
		}

		resp := ErrorResponse{
			Message:  richErr.Message,
			TextCode: richErr.TextCode,
		}
		if fields, ok := richErr.Metadata["fields"].(map[string]string); ok {
			resp.Errors = fields
		}
		if code == fiber.StatusInternalServerError && richErr.Category == goerrors.CategoryInternal {
			resp.Message = "An unexpected server error occurred"
		}

		return c.Status(code).JSON(resp)
	}
}

// validationFailed turns ozzo validation errors into a rich validation error
func validationFailed(err error) error {
	fields := map[string]string{}
	if errs, ok := err.(validation.Errors); ok {
		for field, ferr := range errs {
			fields[field] = ferr.Error()
		}
	} else {
		fields["payload"] = err.Error()
	}

	return goerrors.New("invalid request payload", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidationFailed).
		WithMetadata(map[string]any{"fields": fields})
}

func malformedBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed request body").
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidationFailed)
}
