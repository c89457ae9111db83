package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-ledger/internal/auth"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
	"github.com/fairyhunter13/coupon-ledger/internal/service"
	appvalidator "github.com/fairyhunter13/coupon-ledger/internal/validator"
)

// RedemptionServiceInterface defines the interface for redemption business logic.
type RedemptionServiceInterface interface {
	Redeem(ctx context.Context, in service.RedeemInput) (*service.RedeemResult, error)
	History(ctx context.Context, accountID, couponID string) ([]model.Redemption, error)
}

// RedemptionHandler handles HTTP requests for redemptions.
type RedemptionHandler struct {
	service   RedemptionServiceInterface
	validator *validator.Validate
}

// NewRedemptionHandler creates a new RedemptionHandler with the given service and validator.
func NewRedemptionHandler(svc RedemptionServiceInterface, v *validator.Validate) *RedemptionHandler {
	return &RedemptionHandler{service: svc, validator: v}
}

// Redeem handles POST /api/redemptions. The caller is identified by auth.RequireAuth.
func (h *RedemptionHandler) Redeem(c *fiber.Ctx) error {
	var req model.RedeemRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  service.KindInvalidArgument.String(),
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": appvalidator.Message(err),
			"code":  service.KindInvalidArgument.String(),
		})
	}

	accountID := auth.AccountID(c)
	result, err := h.service.Redeem(c.UserContext(), service.RedeemInput{
		CouponID:    req.CouponID,
		AccountID:   accountID,
		AffiliateID: req.AffiliateID,
	})
	if err != nil {
		return h.writeError(c, err, accountID, req.CouponID)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("account_id", accountID).
		Str("coupon_id", req.CouponID).
		Str("redemption_id", result.RedemptionID).
		Msg("coupon redeemed successfully")

	return c.Status(fiber.StatusOK).JSON(model.RedeemResponse{
		Success:             true,
		Message:             result.Message,
		RedemptionID:        result.RedemptionID,
		CustomerReward:      result.CustomerReward,
		AffiliateCommission: result.AffiliateCommission,
		ReferrerBonusPaid:   result.ReferrerBonusPaid,
	})
}

// History handles GET /api/redemptions?coupon_id=... and lists the caller's
// redemptions of that coupon, newest first.
func (h *RedemptionHandler) History(c *fiber.Ctx) error {
	accountID := auth.AccountID(c)
	couponID := c.Query("coupon_id")

	items, err := h.service.History(c.UserContext(), accountID, couponID)
	if err != nil {
		return h.writeError(c, err, accountID, couponID)
	}

	return c.JSON(fiber.Map{"redemptions": items})
}

func (h *RedemptionHandler) writeError(c *fiber.Ctx, err error, accountID, couponID string) error {
	kind := service.KindOf(err)
	status, message := describeError(err)

	if kind == service.KindInternal {
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("account_id", accountID).
			Str("coupon_id", couponID).
			Bool("outcome_unknown", errors.Is(err, service.ErrOutcomeUnknown)).
			Msg("redemption request failed")
	}

	return c.Status(status).JSON(fiber.Map{
		"error":     message,
		"code":      kind.String(),
		"retriable": service.Retriable(err),
	})
}

// describeError maps a service error to an HTTP status and a user-facing message.
func describeError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNoUsesLeft):
		return fiber.StatusConflict, "This coupon has no uses left"
	case errors.Is(err, service.ErrCouponExpired):
		return fiber.StatusConflict, "This coupon has expired"
	case errors.Is(err, service.ErrOutcomeUnknown):
		return fiber.StatusInternalServerError, "We could not confirm your redemption. Please check your redemption history before trying again"
	}

	switch service.KindOf(err) {
	case service.KindUnauthenticated:
		return fiber.StatusUnauthorized, "You must be logged in"
	case service.KindInvalidArgument:
		return fiber.StatusBadRequest, "Please choose a coupon to redeem"
	case service.KindPermissionDenied:
		return fiber.StatusForbidden, "Your account could not be found"
	case service.KindNotFound:
		return fiber.StatusNotFound, "This coupon does not exist"
	case service.KindFailedPrecondition:
		return fiber.StatusConflict, "This coupon can no longer be redeemed"
	default:
		return fiber.StatusInternalServerError, "Something went wrong. Please try again"
	}
}
