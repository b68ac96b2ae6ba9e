package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/tajious/medsync/internal/config"
	"github.com/tajious/medsync/internal/gate"
	"github.com/tajious/medsync/internal/logger"
	"github.com/tajious/medsync/internal/metrics"
	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/session"
)

const (
	localSessionID = "session_id"
	localSession   = "session"
)

type SessionMiddleware struct {
	store   session.Store
	cfg     config.SessionConfig
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewSessionMiddleware(store session.Store, cfg config.SessionConfig, log *logger.Logger, m *metrics.Metrics) *SessionMiddleware {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionMiddleware{store: store, cfg: cfg, log: log, metrics: m}
}

// Load resolves the session cookie, issuing a fresh id when it is missing or
// malformed, and puts the stored session (if any) in the request locals. When
// a handler rotates the id the cookie is re-issued on the way out.
func (m *SessionMiddleware) Load() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(m.cfg.CookieName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			m.setCookie(c, id)
		}
		c.Locals(localSessionID, id)

		sess, err := m.store.Get(c.UserContext(), id)
		switch {
		case err == nil:
			c.Locals(localSession, sess)
		case !errors.Is(err, session.ErrNoSession):
			m.log.Error(c.UserContext(), "session.load_failed", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Session store unavailable",
			})
		}

		err = c.Next()
		if rotated := SessionID(c); rotated != id {
			m.setCookie(c, rotated)
		}
		return err
	}
}

func (m *SessionMiddleware) setCookie(c *fiber.Ctx, id string) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cfg.CookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(m.cfg.TTL),
		HTTPOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// RequireRole applies the session gate for role.
func (m *SessionMiddleware) RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := gate.Authorize(role, CurrentSession(c), c.OriginalURL())
		m.metrics.GateDecision(role.String(), decision.Outcome.String())

		switch decision.Outcome {
		case gate.RedirectToLogin:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":    "Login required",
				"redirect": decision.LoginLocation(),
			})
		case gate.DenyWithMessage:
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": decision.Message,
			})
		}
		return c.Next()
	}
}

// RotateSession points the request at a new session id; Load sends the new
// cookie with the response.
func RotateSession(c *fiber.Ctx, id string) {
	c.Locals(localSessionID, id)
}

func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(localSessionID).(string)
	return id
}

// CurrentSession is nil when the request carries no stored session.
func CurrentSession(c *fiber.Ctx) *models.Session {
	sess, _ := c.Locals(localSession).(*models.Session)
	return sess
}
