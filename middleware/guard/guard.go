// Package guard provides route middleware that enforces session access
// rules: authentication, admin role, and premium entitlement. Decisions are
// delegated to session.Policy so the escape hatches live in one place.
package guard

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-session"
)

// DefaultContextKey is the Locals key the session snapshot is stored under.
const DefaultContextKey = "session"

// SessionSource exposes the current session snapshot. *session.Store
// satisfies it.
type SessionSource interface {
	Current() session.Session
}

// Config configures a Guard.
type Config struct {
	Source SessionSource
	Policy *session.Policy

	// ContextKey overrides the Locals key. Default: "session".
	ContextKey string

	// ErrorHandler handles rejected requests. Default renders a JSON error
	// with the status mapped from the error code.
	ErrorHandler func(c router.Context, err error) error

	Logger session.Logger
	Debug  bool
}

// Guard builds access-control middleware around a session source and policy.
type Guard struct {
	source       SessionSource
	policy       *session.Policy
	contextKey   string
	errorHandler func(c router.Context, err error) error
	logger       session.Logger
	debug        bool
}

// New creates a Guard. Source and Policy are required.
func New(cfg Config) (*Guard, error) {
	if cfg.Source == nil {
		return nil, errors.New("guard: session source is required", errors.CategoryBadInput)
	}
	if cfg.Policy == nil {
		return nil, errors.New("guard: access policy is required", errors.CategoryBadInput)
	}

	g := &Guard{
		source:       cfg.Source,
		policy:       cfg.Policy,
		contextKey:   cfg.ContextKey,
		errorHandler: cfg.ErrorHandler,
		logger:       cfg.Logger,
		debug:        cfg.Debug,
	}

	if g.contextKey == "" {
		g.contextKey = DefaultContextKey
	}
	if g.logger == nil {
		g.logger = session.DefaultLogger()
	}
	if g.errorHandler == nil {
		g.errorHandler = defaultErrorHandler
	}

	return g, nil
}

// RequireAuthenticated rejects requests unless the current session is Ready
// with an identity.
func (g *Guard) RequireAuthenticated() router.MiddlewareFunc {
	return g.require(func(sess session.Session) error {
		if !g.policy.IsAuthenticated(sess) {
			return session.ErrUnauthenticated
		}
		return nil
	})
}

// RequireAdmin rejects requests unless the current session holds the admin
// role or a privileged email.
func (g *Guard) RequireAdmin() router.MiddlewareFunc {
	return g.require(func(sess session.Session) error {
		if !g.policy.IsAuthenticated(sess) {
			return session.ErrUnauthenticated
		}
		if !g.policy.IsAdmin(sess) {
			return session.ErrAdminRequired
		}
		return nil
	})
}

// RequirePremium rejects requests unless the current session carries the
// premium entitlement. Admins pass regardless.
func (g *Guard) RequirePremium() router.MiddlewareFunc {
	return g.require(func(sess session.Session) error {
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

func (g *Guard) require(check func(session.Session) error) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			sess := g.source.Current()

			if g.debug {
				g.logger.Debug("guard check: %s", print.MaybePrettyJSON(g.policy.Decide(sess)))
			}

			if err := check(sess); err != nil {
				g.logger.Info("guard rejected request: %s path=%s", err, c.OriginalURL())
				return g.errorHandler(c, err)
			}

			c.Locals(g.contextKey, &sess)
			c.SetContext(session.WithContext(c.Context(), &sess))

			return next(c)
		}
	}
}

func defaultErrorHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuthz, "Access denied").
			WithCode(errors.CodeForbidden)
	}

	status := router.StatusForbidden
	if richErr.Category == errors.CategoryAuth {
		status = router.StatusUnauthorized
	}

	return c.JSON(status, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
