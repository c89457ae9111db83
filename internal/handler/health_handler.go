package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// healthTimeout bounds each dependency probe.
const healthTimeout = 2 * time.Second

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the ledger's backing store is reachable.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler over the database pool.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check handles GET /health.
// Returns 200 {"status":"healthy","checks":{"database":"ok"}} when the database answers,
// and 503 with "unhealthy" otherwise. Redemptions cannot commit without the database.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
			"checks": fiber.Map{"database": "down"},
		})
	}
	return c.JSON(fiber.Map{
		"status": "healthy",
		"checks": fiber.Map{"database": "ok"},
	})
}
