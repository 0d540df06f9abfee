package guard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-session"
	"github.com/goliatone/go-session/middleware/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiberApp(t *testing.T, g *guard.Guard) *fiber.App {
	t.Helper()
	app := fiber.New()

	app.Get("/premium", g.FiberPremium(), func(c *fiber.Ctx) error {
		return c.SendString("premium ok")
	})
	app.Get("/admin", g.FiberAdmin(), func(c *fiber.Ctx) error {
		return c.SendString("admin ok")
	})
	app.Get("/me", g.FiberAuthenticated(), func(c *fiber.Ctx) error {
		sess, err := guard.SessionFromFiber(c, "")
		if err != nil {
			return err
		}
		return c.JSON(sess)
	})

	return app
}

func TestFiberAuthenticatedAllows(t *testing.T) {
	g := newGuard(t, readySession("alice@example.com", session.RoleUser, false))
	app := fiberApp(t, g)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var sess session.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.Equal(t, "alice@example.com", sess.Email)
}

func TestFiberAuthenticatedRejects(t *testing.T) {
	g := newGuard(t, session.AnonymousSession())
	app := fiberApp(t, g)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, session.TextCodeUnauthenticated, payload["text_code"])
}

func TestFiberAdminForbidden(t *testing.T) {
	g := newGuard(t, readySession("bob@example.com", session.RoleUser, false))
	app := fiberApp(t, g)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFiberPremiumAdminBypass(t *testing.T) {
	g := newGuard(t, readySession("bob@example.com", session.RoleAdmin, false))
	app := fiberApp(t, g)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/premium", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
