package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tajious/medsync/internal/api/handlers"
	"github.com/tajious/medsync/internal/middleware"
	"github.com/tajious/medsync/internal/models"
)

type Router struct {
	app               *fiber.App
	authHandler       *handlers.AuthHandler
	viewHandler       *handlers.ViewHandler
	scheduleHandler   *handlers.ScheduleHandler
	registryHandler   *handlers.RegistryHandler
	sessionMiddleware *middleware.SessionMiddleware
	rateLimiter       *middleware.RateLimiter
}

// NewRouter wires the handlers. registryHandler may be nil when the demo
// registry is disabled.
func NewRouter(
	app *fiber.App,
	authHandler *handlers.AuthHandler,
	viewHandler *handlers.ViewHandler,
	scheduleHandler *handlers.ScheduleHandler,
	registryHandler *handlers.RegistryHandler,
	sessionMiddleware *middleware.SessionMiddleware,
	rateLimiter *middleware.RateLimiter,
) *Router {
	return &Router{
		app:               app,
		authHandler:       authHandler,
		viewHandler:       viewHandler,
		scheduleHandler:   scheduleHandler,
		registryHandler:   registryHandler,
		sessionMiddleware: sessionMiddleware,
		rateLimiter:       rateLimiter,
	}
}

func (r *Router) SetupRoutes() {
	r.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	sessions := r.app.Group("", r.sessionMiddleware.Load())

	// Auth flow
	authGroup := sessions.Group("/api/auth")
	throttle := r.rateLimiter.RateLimit()
	authGroup.Post("/login", throttle, r.authHandler.Login)
	authGroup.Post("/logout", r.authHandler.Logout)
	authGroup.Get("/session", r.authHandler.Session)
	authGroup.Post("/register", throttle, r.authHandler.Register)
	authGroup.Post("/verify-otp", throttle, r.authHandler.VerifyOTP)
	authGroup.Post("/resend-otp", throttle, r.authHandler.ResendOTP)
	authGroup.Post("/forgot-password", throttle, r.authHandler.ForgotPassword)
	authGroup.Post("/reset-password", throttle, r.authHandler.ResetPassword)

	// Role-partitioned views
	for _, role := range models.Roles {
		gated := sessions.Group("/"+role.String(), r.sessionMiddleware.RequireRole(role))
		for _, view := range handlers.Views[role] {
			if role == models.RoleDoctor && view == "schedule" {
				gated.Get("/schedule", r.scheduleHandler.Get)
				continue
			}
			gated.Get("/"+view, r.viewHandler.Show(role, view))
		}
		gated.Put("/profile", r.viewHandler.UpdateProfile)

		switch role {
		case models.RoleDoctor:
			gated.Post("/schedule", r.scheduleHandler.Update)
		case models.RoleStaff:
			if r.registryHandler != nil {
				gated.Get("/registry", r.registryHandler.ListUsers)
			}
		}
	}
}
