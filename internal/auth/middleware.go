package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// AccountIDKey is the fiber.Ctx locals key holding the verified account id.
const AccountIDKey = "account_id"

// Verifier resolves a bearer token to an account id.
type Verifier interface {
	Verify(token string) (string, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the caller's
// account id under AccountIDKey.
func RequireAuth(v Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return unauthenticated(c)
		}

		accountID, err := v.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Debug().
				Err(err).
				Str("request_id", c.GetRespHeader("X-Request-ID")).
				Str("path", c.Path()).
				Msg("rejected bearer token")
			return unauthenticated(c)
		}

		c.Locals(AccountIDKey, accountID)
		return c.Next()
	}
}

// AccountID returns the verified account id of the request, or "".
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(AccountIDKey).(string)
	return id
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "You must be logged in",
		"code":  "unauthenticated",
	})
}
