package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/producer/internal/middleware"
	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/service"
	"github.com/makeasinger/producer/internal/store"
	"github.com/makeasinger/producer/pkg/response"
)

type ProductionHandler struct {
	service   *service.ProductionService
	validator *validator.Validate
}

func NewProductionHandler(svc *service.ProductionService, v *validator.Validate) *ProductionHandler {
	return &ProductionHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/productions
func (h *ProductionHandler) Create(c *fiber.Ctx) error {
	var req model.ProductionCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	prod, err := h.service.Create(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrUnknownGenre) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.ProductionCreateResponse{
		ProductionID: prod.ID,
		Status:       prod.Status,
		CreatedAt:    prod.CreatedAt,
	})
}

// List handles GET /api/productions
func (h *ProductionHandler) List(c *fiber.Ctx) error {
	result, err := h.service.List(middleware.GetUserID(c))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}

// Detail handles GET /api/productions/:id
func (h *ProductionHandler) Detail(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Production ID is required", nil)
	}

	result, err := h.service.Detail(middleware.GetUserID(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Production not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}

// Progress handles GET /api/productions/:id/progress
func (h *ProductionHandler) Progress(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Production ID is required", nil)
	}

	result, err := h.service.Progress(middleware.GetUserID(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Production not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}

// Approve handles POST /api/productions/:id/approve
func (h *ProductionHandler) Approve(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.Approve, "Production is not awaiting approval")
}

// Cancel handles POST /api/productions/:id/cancel
func (h *ProductionHandler) Cancel(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.Cancel, "Production already finished")
}

// Replan handles POST /api/productions/:id/replan
func (h *ProductionHandler) Replan(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.Replan, "Production cannot be replanned")
}

// Retry handles POST /api/productions/:id/retry
func (h *ProductionHandler) Retry(c *fiber.Ctx) error {
	return h.lifecycle(c, h.service.Retry, "Production has no retryable songs")
}

func (h *ProductionHandler) lifecycle(c *fiber.Ctx, op func(ownerID, id string) (*model.LifecycleResponse, error), conflictMsg string) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Production ID is required", nil)
	}

	result, err := op(middleware.GetUserID(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Production not found")
		}
		return response.ServiceError(c, err.Error())
	}
	if !result.Applied {
		return response.Conflict(c, conflictMsg)
	}
	return response.OK(c, result)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
