package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/service"
	"github.com/makeasinger/producer/pkg/response"
)

// CallbackHandler receives the audio vendor's completion webhooks.
type CallbackHandler struct {
	tracker   *service.Tracker
	validator *validator.Validate
}

func NewCallbackHandler(tracker *service.Tracker, v *validator.Validate) *CallbackHandler {
	return &CallbackHandler{
		tracker:   tracker,
		validator: v,
	}
}

// Generation handles POST /callbacks/suno. Unknown job ids are accepted
// and dropped; the vendor retries on non-2xx and there is nothing to
// retry here.
func (h *CallbackHandler) Generation(c *fiber.Ctx) error {
	var req model.GenerationCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.tracker.Resolve(c.Context(), req.JobID, model.GenerationStatus(req.Status), req.Error); err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"received": true})
}
