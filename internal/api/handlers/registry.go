package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/storage"
	"github.com/tajious/medsync/internal/validation"
)

// RegistryHandler lists the offline demo registry for staff.
type RegistryHandler struct {
	registry storage.Registry
}

func NewRegistryHandler(registry storage.Registry) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

// ListUsersRequest represents the query parameters for listing registered users
type ListUsersRequest struct {
	Page     int    `query:"page" validate:"min=1"`
	PageSize int    `query:"page_size" validate:"min=1,max=100"`
	Search   string `query:"search"`
	Role     string `query:"role" validate:"omitempty,oneof=patient doctor staff pharmacy Patient Doctor Staff Pharmacy"`
}

// ListUsersResponse represents the response for listing registered users
type ListUsersResponse struct {
	Users      []models.RegisteredUser `json:"users"`
	Total      int64                   `json:"total"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	TotalPages int                     `json:"total_pages"`
}

func (h *RegistryHandler) ListUsers(c *fiber.Ctx) error {
	var req ListUsersRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid query parameters",
		})
	}

	// Set default values
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	if err := validation.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Invalid query parameters",
			"fields": err,
		})
	}

	users, total, err := h.registry.List(c.UserContext(), storage.ListOptions{
		Page:     req.Page,
		PageSize: req.PageSize,
		Search:   req.Search,
		Role:     models.ParseRole(req.Role),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch users",
		})
	}

	totalPages := int(total) / req.PageSize
	if int(total)%req.PageSize > 0 {
		totalPages++
	}

	return c.JSON(ListUsersResponse{
		Users:      users,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	})
}
