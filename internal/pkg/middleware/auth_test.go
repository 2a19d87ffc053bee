package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stammtisch-app/stammtisch/internal/pkg/usercontext"
)

// newGuardedApp builds an app where the request's role header stands in for
// the session-derived user context.
func newGuardedApp(guard fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		switch c.Get("X-Test-Role") {
		case "admin":
			c.Locals(usercontext.KeyUserContext, usercontext.UserContext{UserID: 1, IsLoggedIn: true, IsAdmin: true})
		case "member":
			c.Locals(usercontext.KeyUserContext, usercontext.UserContext{UserID: 2, IsLoggedIn: true})
		}
		return c.Next()
	})
	app.Get("/guarded", guard, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func requestAs(t *testing.T, app *fiber.App, role string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/guarded", nil)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRequireAPISessionAuth(t *testing.T) {
	app := newGuardedApp(RequireAPISessionAuth)

	assert.Equal(t, fiber.StatusUnauthorized, requestAs(t, app, ""))
	assert.Equal(t, fiber.StatusOK, requestAs(t, app, "member"))
	assert.Equal(t, fiber.StatusOK, requestAs(t, app, "admin"))
}

func TestRequireAPIAdmin(t *testing.T) {
	app := newGuardedApp(RequireAPIAdmin)

	assert.Equal(t, fiber.StatusUnauthorized, requestAs(t, app, ""))
	assert.Equal(t, fiber.StatusForbidden, requestAs(t, app, "member"))
	assert.Equal(t, fiber.StatusOK, requestAs(t, app, "admin"))
}
