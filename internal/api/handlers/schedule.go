package handlers

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tajious/medsync/internal/apiclient"
	"github.com/tajious/medsync/internal/auth"
	"github.com/tajious/medsync/internal/logger"
	"github.com/tajious/medsync/internal/middleware"
	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/token"
	"github.com/tajious/medsync/internal/validation"
)

const (
	slotLayout   = "2006-01-02T15:04"
	serverLayout = "2006-01-02 15:04:05"
)

var (
	slotInputLayouts = []string{
		slotLayout,
		"2006-01-02T15:04:05",
		serverLayout,
		"2006-01-02 15:04",
		time.RFC3339,
	}
	trailingSeconds = regexp.MustCompile(`(:\d{2})$`)
)

type ScheduleHandler struct {
	api *apiclient.Client
	svc *auth.Service
	log *logger.Logger
}

func NewScheduleHandler(api *apiclient.Client, svc *auth.Service, log *logger.Logger) *ScheduleHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ScheduleHandler{api: api, svc: svc, log: log}
}

type ScheduleView struct {
	ViewResponse
	DoctorName string   `json:"doctor_name,omitempty"`
	Blocked    []string `json:"blocked"`
	Message    string   `json:"message,omitempty"`
}

type ScheduleActionRequest struct {
	Action string `json:"action" validate:"required,oneof=block_slot unblock_slot block_day unblock_day block_all unblock_all"`
	Slot   string `json:"slot" validate:"required_if=Action block_slot,required_if=Action unblock_slot"`
	Day    string `json:"day" validate:"required_if=Action block_day,required_if=Action unblock_day,omitempty,datetime=2006-01-02"`
}

func (h *ScheduleHandler) Get(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	view, err := h.fetch(c, sess)
	if err != nil {
		return h.failure(c, err)
	}
	return c.JSON(view)
}

func (h *ScheduleHandler) Update(c *fiber.Ctx) error {
	var req ScheduleActionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Invalid schedule action",
			"fields": err,
		})
	}

	action := apiclient.ScheduleAction{Action: req.Action, Day: req.Day}
	if req.Slot != "" {
		action.Slot = ServerSlot(req.Slot)
	}

	sess := middleware.CurrentSession(c)
	if err := h.api.UpdateSchedule(c.UserContext(), sess.Token, action); err != nil {
		return h.failure(c, err)
	}

	view, err := h.fetch(c, sess)
	if err != nil {
		return h.failure(c, err)
	}
	view.Message = "Action " + strings.Replace(req.Action, "_", " ", 1) + " completed"
	h.log.Info(h.log.WithField(c.UserContext(), "action", req.Action), "schedule.updated")
	return c.JSON(view)
}

func (h *ScheduleHandler) fetch(c *fiber.Ctx, sess *models.Session) (*ScheduleView, error) {
	resp, err := h.api.Schedule(c.UserContext(), sess.Token)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	view := &ScheduleView{
		ViewResponse: ViewResponse{
			View:     "schedule",
			Role:     models.RoleDoctor,
			Greeting: greeting(sess),
			User:     sess.User,
		},
		DoctorName: resp.DoctorName,
		Blocked:    []string{},
	}
	for _, slot := range resp.Schedule {
		if !slot.Blocked() {
			continue
		}
		key := NormalizeSlot(slot.SlotDatetime)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		view.Blocked = append(view.Blocked, key)
	}
	sort.Strings(view.Blocked)

	if view.DoctorName == "" {
		view.DoctorName = token.FullNameFromToken(sess.Token)
	}
	return view, nil
}

// failure maps an API error onto the response. A 401 means the API no longer
// accepts the session's token, so the session is purged.
func (h *ScheduleHandler) failure(c *fiber.Ctx, err error) error {
	ctx := c.UserContext()
	switch {
	case apiclient.IsUnauthorized(err):
		res, clearErr := h.svc.Expire(ctx, middleware.SessionID(c))
		if clearErr != nil {
			h.log.Error(ctx, "schedule.session_purge_failed", clearErr)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to clear session",
			})
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":    res.Message,
			"redirect": res.Redirect,
		})
	case apiclient.IsForbidden(err):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden - doctor role required.",
		})
	case errors.Is(err, apiclient.ErrTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "Request timed out",
		})
	case errors.Is(err, apiclient.ErrUnreachable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Network error. Try again.",
		})
	}

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": apiErr.Message,
		})
	}
	h.log.Error(ctx, "schedule.failed", err)
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "Failed to fetch schedule",
	})
}

// NormalizeSlot renders an API slot datetime as YYYY-MM-DDTHH:MM. Strings
// that do not parse only lose a trailing seconds field.
func NormalizeSlot(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range slotInputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(slotLayout)
		}
	}
	return trailingSeconds.ReplaceAllString(raw, "")
}

// ServerSlot renders a slot key in the API's "YYYY-MM-DD HH:MM:SS" form.
func ServerSlot(slot string) string {
	slot = strings.TrimSpace(slot)
	for _, layout := range slotInputLayouts {
		if t, err := time.Parse(layout, slot); err == nil {
			return t.Format(serverLayout)
		}
	}
	return slot
}
