package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tajious/medsync/internal/auth"
	"github.com/tajious/medsync/internal/middleware"
	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/session"
	"github.com/tajious/medsync/internal/token"
	"github.com/tajious/medsync/internal/validation"
)

// Views lists the role-partitioned views. Each is served at /{role}/{view}
// behind the session gate for its role.
var Views = map[models.Role][]string{
	models.RolePatient:  {"dashboard", "appointments", "profile"},
	models.RoleDoctor:   {"dashboard", "todays-appointments", "inventory", "prescriptions", "schedule"},
	models.RolePharmacy: {"dashboard", "inventory", "restock-alerts", "prescriptions"},
	models.RoleStaff:    {"dashboard", "appointment-confirmation", "patients-records"},
}

type ViewHandler struct {
	svc *auth.Service
}

func NewViewHandler(svc *auth.Service) *ViewHandler {
	return &ViewHandler{svc: svc}
}

// ViewResponse is what a renderer needs to mount a view.
type ViewResponse struct {
	View     string       `json:"view"`
	Role     models.Role  `json:"role"`
	Greeting string       `json:"greeting"`
	User     *models.User `json:"user"`
}

// Show serves one view. It runs after RequireRole, so the session is present
// and carries role.
func (h *ViewHandler) Show(role models.Role, view string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := middleware.CurrentSession(c)
		return c.JSON(ViewResponse{
			View:     view,
			Role:     role,
			Greeting: greeting(sess),
			User:     sess.User,
		})
	}
}

// UpdateProfile replaces the signed-in user's record.
func (h *ViewHandler) UpdateProfile(c *fiber.Ctx) error {
	var form auth.ProfileForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c)
	}

	user, err := h.svc.UpdateProfile(c.UserContext(), middleware.SessionID(c), form)
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  "Please fix the highlighted fields",
				"fields": verrs,
			})
		case errors.Is(err, session.ErrNoSession):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":    "Login required",
				"redirect": "/login",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated",
		"user":    user,
	})
}

// greeting prefers the name carried by the token over the stored record.
func greeting(sess *models.Session) string {
	if sess == nil {
		return ""
	}
	if name := token.FullNameFromToken(sess.Token); name != "" {
		return name
	}
	if sess.User != nil {
		return sess.User.FullName
	}
	return ""
}
