package guard

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-session"
)

// SessionFromFiber reads the session snapshot a guard handler stored in
// fiber Locals.
func SessionFromFiber(c *fiber.Ctx, key string) (*session.Session, error) {
	if key == "" {
		key = DefaultContextKey
	}

	raw := c.Locals(key)
	if raw == nil {
		return nil, session.ErrUnauthenticated
	}

	sess, ok := raw.(*session.Session)
	if !ok {
		return nil, session.ErrUnauthenticated
	}
	return sess, nil
}

// FiberAuthenticated is the fiber-native form of RequireAuthenticated for
// hosts that mount handlers on a fiber app directly.
func (g *Guard) FiberAuthenticated() fiber.Handler {
	return g.fiberRequire(func(sess session.Session) error {
		if !g.policy.IsAuthenticated(sess) {
			return session.ErrUnauthenticated
		}
		return nil
	})
}

// FiberAdmin is the fiber-native form of RequireAdmin.
func (g *Guard) FiberAdmin() fiber.Handler {
	return g.fiberRequire(func(sess session.Session) error {
		if !g.policy.IsAuthenticated(sess) {
			return session.ErrUnauthenticated
		}
		if !g.policy.IsAdmin(sess) {
			return session.ErrAdminRequired
		}
		return nil
	})
}

// FiberPremium is the fiber-native form of RequirePremium.
func (g *Guard) FiberPremium() fiber.Handler {
	return g.fiberRequire(func(sess session.Session) error {
		if !g.policy.IsAuthenticated(sess) {
			return session.ErrUnauthenticated
		}
		if g.policy.IsAdmin(sess) {
			return nil
		}
		if !g.policy.IsPremium(sess) {
			return session.ErrPremiumRequired
		}
		return nil
	})
}

func (g *Guard) fiberRequire(check func(session.Session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := g.source.Current()

		if err := check(sess); err != nil {
			g.logger.Info("guard rejected request: %s path=%s", err, c.OriginalURL())
			return fiberErrorResponse(c, err)
		}

		c.Locals(g.contextKey, &sess)
		c.SetUserContext(session.WithContext(c.UserContext(), &sess))

		return c.Next()
	}
}

func fiberErrorResponse(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuthz, "Access denied").
			WithCode(errors.CodeForbidden)
	}

	status := fiber.StatusForbidden
	if richErr.Category == errors.CategoryAuth {
		status = fiber.StatusUnauthorized
	}

	return c.Status(status).JSON(fiber.Map{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
