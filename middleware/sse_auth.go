// middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates the session token passed as the `token` query
// param, since EventSource cannot set headers.
//
// Usage:
//
//	app.Get("/lobbies/:id/events", middleware.SSEAuthMiddleware(secret), events.StreamLobbySSE)
func SSEAuthMiddleware(sessionSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		if accessToken == "" {
			log.Printf("[SSEAuth] ❌ missing token query param on %s", c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token in query",
			})
		}

		claims, err := ParseSessionToken(sessionSecret, accessToken)
		if err != nil {
			log.Printf("[SSEAuth] ❌ validation failed (prefix: %.6s...): %v", accessToken, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals("user_id", claims.UID)
		c.Locals("user_name", claims.Name)
		log.Printf("[SSEAuth] ✅ authenticated %s", claims.UID)
		return c.Next()
	}
}
