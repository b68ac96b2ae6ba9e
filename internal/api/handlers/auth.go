package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tajious/medsync/internal/apiclient"
	"github.com/tajious/medsync/internal/auth"
	"github.com/tajious/medsync/internal/middleware"
	"github.com/tajious/medsync/internal/roles"
	"github.com/tajious/medsync/internal/validation"
)

type AuthHandler struct {
	svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type authResponse struct {
	*auth.Result
	Error  string            `json:"error,omitempty"`
	Fields validation.Errors `json:"fields,omitempty"`
}

type loginRequest struct {
	auth.LoginForm
	Email string `json:"email"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	req.Normalize(req.Email)

	res, err := h.svc.Login(c.UserContext(), middleware.SessionID(c), req.LoginForm)
	if err == nil && res.SessionID != "" {
		middleware.RotateSession(c, res.SessionID)
	}
	return respond(c, res, err)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	res, err := h.svc.Logout(c.UserContext(), middleware.SessionID(c))
	return respond(c, res, err)
}

// Session reports the flow state of the current session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	res, err := h.svc.Status(c.UserContext(), middleware.SessionID(c))
	return respond(c, res, err)
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var form auth.RegisterForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c)
	}
	res, err := h.svc.Register(c.UserContext(), middleware.SessionID(c), form)
	return respond(c, res, err)
}

func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var form auth.VerifyOTPForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c)
	}
	res, err := h.svc.VerifyOTP(c.UserContext(), middleware.SessionID(c), form)
	return respond(c, res, err)
}

func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var form auth.ResendOTPForm
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&form); err != nil {
			return invalidBody(c)
		}
	}
	res, err := h.svc.ResendOTP(c.UserContext(), middleware.SessionID(c), form)
	return respond(c, res, err)
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var form auth.ForgotPasswordForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c)
	}
	res, err := h.svc.ForgotPassword(c.UserContext(), form)
	return respond(c, res, err)
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var form auth.ResetPasswordForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c)
	}
	res, err := h.svc.ResetPassword(c.UserContext(), form)
	return respond(c, res, err)
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
	})
}

// respond writes a flow result, choosing the status from err.
func respond(c *fiber.Ctx, res *auth.Result, err error) error {
	if res == nil {
		res = &auth.Result{State: auth.StateAnonymous}
	}
	if err == nil {
		return c.JSON(authResponse{Result: res})
	}

	body := authResponse{Result: res, Error: res.Message}
	if body.Error == "" {
		body.Error = "Request failed"
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		body.Fields = verrs
	}
	return c.Status(statusFor(err)).JSON(body)
}

func statusFor(err error) int {
	var verrs validation.Errors
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &verrs):
		return fiber.StatusBadRequest
	case errors.Is(err, roles.ErrIndeterminateRole):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return fiber.StatusBadGateway
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, auth.ErrNoPendingRegistration):
		return fiber.StatusConflict
	case errors.Is(err, auth.ErrOTPExpired):
		return fiber.StatusGone
	case errors.Is(err, auth.ErrInvalidOTP):
		return fiber.StatusBadRequest
	case errors.Is(err, apiclient.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, apiclient.ErrUnreachable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
