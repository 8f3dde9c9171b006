package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/homehive/chat-service/internal/auth"
)

const ClaimsKey = "claims"

// JWTAuth validates the bearer credential and stores the claims in locals.
// Token issuance and refresh belong to the auth service; a 401 here is the
// signal for clients to refresh and retry once.
func JWTAuth(validator *auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearerToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}
		claims, err := validator.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// Claims pulls the authenticated identity out of the request context.
func Claims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(ClaimsKey).(*auth.Claims)
	return claims
}
