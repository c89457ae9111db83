package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

// ClickServiceInterface defines the interface for click tracking.
type ClickServiceInterface interface {
	RecordClick(ctx context.Context, couponID string) bool
}

// ClickHandler handles HTTP requests for coupon clicks.
type ClickHandler struct {
	service ClickServiceInterface
}

// NewClickHandler creates a new ClickHandler with the given service.
func NewClickHandler(svc ClickServiceInterface) *ClickHandler {
	return &ClickHandler{service: svc}
}

// RecordClick handles POST /api/coupons/:id/clicks. It needs no authentication and
// always answers 200; failures only show up as {"success": false}.
func (h *ClickHandler) RecordClick(c *fiber.Ctx) error {
	ok := h.service.RecordClick(c.UserContext(), c.Params("id"))
	return c.Status(fiber.StatusOK).JSON(model.ClickResponse{Success: ok})
}
