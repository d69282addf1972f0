// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware resolves the calling player. The Gateway may pass
// X-User-ID (and X-User-Name) directly; otherwise an X-Session-Token issued
// by this service is required. Roles only come from X-User-Roles.
func UserContextMiddleware(sessionSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		userName := strings.TrimSpace(c.Get("X-User-Name"))

		if userID == "" {
			raw := strings.TrimSpace(c.Get("X-Session-Token"))
			if raw == "" {
				log.Printf("❌ [USER_CTX] no X-User-ID or X-Session-Token on %s", c.Path())
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "missing user context — send X-Session-Token or come through the gateway",
				})
			}
			claims, err := ParseSessionToken(sessionSecret, raw)
			if err != nil {
				log.Printf("❌ [USER_CTX] %v on %s", err, c.Path())
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid session token",
				})
			}
			userID = claims.UID
			if userName == "" {
				userName = claims.Name
			}
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_name", userName)
		c.Locals("user_roles", roles)
		return c.Next()
	}
}

// RequireRole lets through only users whose gateway roles include role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		log.Printf("🚫 [USER_CTX] %v lacks role %q for %s", c.Locals("user_id"), role, c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role",
		})
	}
}
