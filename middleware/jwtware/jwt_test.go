package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/go-auth/middleware/jwtware"
)

type testClaims struct {
	id   string
	role string
}

func (c testClaims) UserID() string   { return c.id }
func (c testClaims) RoleName() string { return c.role }

type ctxKey struct{}

var errDenied = errors.New("denied")

// staticAuthorizer accepts only the token "good"
func staticAuthorizer(seen *[]string) jwtware.TokenAuthorizer {
	return jwtware.TokenAuthorizerFunc(func(token string, roles []string) (jwtware.AuthClaims, error) {
		if seen != nil {
			*seen = append(*seen, token)
		}
		if token != "good" {
			return nil, errDenied
		}
		return testClaims{id: "user-1", role: roles[0]}, nil
	})
}

func run(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNew_PanicsWithoutAuthorizer(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.New(jwtware.Config{Roles: []string{"user"}})
	})
}

func TestNew_PublicRouteWithoutRoles(t *testing.T) {
	app := fiber.New()
	app.Get("/", jwtware.New(jwtware.Config{Authorizer: staticAuthorizer(nil)}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	status, body := run(t, app, httptest.NewRequest(fiber.MethodGet, "/", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body)
}

func TestNew_MissingToken(t *testing.T) {
	missing := errors.New("no token here")

	app := fiber.New()
	app.Get("/", jwtware.New(jwtware.Config{
		Authorizer:        staticAuthorizer(nil),
		Roles:             []string{"user"},
		MissingTokenError: missing,
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	status, body := run(t, app, httptest.NewRequest(fiber.MethodGet, "/", nil))
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, body, "no token here")
}

func TestNew_AuthorizerErrorIsPassedToErrorHandler(t *testing.T) {
	var got error

	app := fiber.New()
	app.Get("/", jwtware.New(jwtware.Config{
		Authorizer: staticAuthorizer(nil),
		Roles:      []string{"user"},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			got = err
			return c.SendStatus(fiber.StatusForbidden)
		},
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")

	status, _ := run(t, app, req)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.ErrorIs(t, got, errDenied)
}

func TestNew_StoresClaimsAndEnrichesContext(t *testing.T) {
	app := fiber.New()
	app.Get("/", jwtware.New(jwtware.Config{
		Authorizer: staticAuthorizer(nil),
		Roles:      []string{"admin"},
		ContextKey: "claims",
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			return context.WithValue(ctx, ctxKey{}, claims.UserID())
		},
	}), func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(jwtware.AuthClaims)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		fromCtx, _ := c.UserContext().Value(ctxKey{}).(string)
		return c.SendString(claims.RoleName() + ":" + fromCtx)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer good")

	status, body := run(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin:user-1", body)
}

func TestNew_CookieBeforeHeader(t *testing.T) {
	var seen []string

	app := fiber.New()
	app.Get("/", jwtware.New(jwtware.Config{
		Authorizer:  staticAuthorizer(&seen),
		Roles:       []string{"user"},
		TokenLookup: "cookie:access_token,header:Authorization",
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good"})
	req.Header.Set("Authorization", "Bearer bad")

	status, _ := run(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []string{"good"}, seen)

	seen = nil
	req = httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")

	status, _ = run(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []string{"good"}, seen)
}

func TestNew_Filter(t *testing.T) {
	app := fiber.New()
	app.Get("/:path", jwtware.New(jwtware.Config{
		Authorizer: staticAuthorizer(nil),
		Roles:      []string{"user"},
		Filter: func(c *fiber.Ctx) bool {
			return c.Params("path") == "health"
		},
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	status, _ := run(t, app, httptest.NewRequest(fiber.MethodGet, "/health", nil))
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = run(t, app, httptest.NewRequest(fiber.MethodGet, "/orders", nil))
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGetExtractors(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization, query:token,param:tok,cookie:jwt,bogus", "Bearer")
	assert.Len(t, extractors, 4)

	app := fiber.New()
	app.Get("/:tok?", func(c *fiber.Ctx) error {
		raw, err := jwtware.ExtractRawToken(c, extractors)
		if err != nil {
			return c.SendString("none")
		}
		return c.SendString(raw)
	})

	tests := []struct {
		name string
		req  func() *http.Request
		want string
	}{
		{
			name: "header",
			req: func() *http.Request {
				r := httptest.NewRequest(fiber.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Bearer from-header")
				return r
			},
			want: "from-header",
		},
		{
			name: "wrong scheme",
			req: func() *http.Request {
				r := httptest.NewRequest(fiber.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Basic abc")
				return r
			},
			want: "none",
		},
		{
			name: "query",
			req: func() *http.Request {
				return httptest.NewRequest(fiber.MethodGet, "/?token=from-query", nil)
			},
			want: "from-query",
		},
		{
			name: "param",
			req: func() *http.Request {
				return httptest.NewRequest(fiber.MethodGet, "/from-param", nil)
			},
			want: "from-param",
		},
		{
			name: "cookie",
			req: func() *http.Request {
				r := httptest.NewRequest(fiber.MethodGet, "/", nil)
				r.AddCookie(&http.Cookie{Name: "jwt", Value: "from-cookie"})
				return r
			},
			want: "from-cookie",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, body := run(t, app, tt.req())
			assert.Equal(t, tt.want, body)
		})
	}
}
