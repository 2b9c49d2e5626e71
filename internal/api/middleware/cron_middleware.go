package middleware

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

const CronSecretHeader = "X-Cron-Secret"

// CronSecret guards the scan trigger with a shared secret. With no secret
// configured every request is refused.
func CronSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			slog.Warn("cron trigger called but CRON_SECRET is not set")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Cron trigger is disabled",
			})
		}

		given := c.Get(CronSecretHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid cron secret",
			})
		}
		return c.Next()
	}
}
