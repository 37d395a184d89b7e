package auth

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the middleware for downstream handlers.
const (
	LocalUserID = "user_id"
	LocalEmail  = "user_email"
)

// RequireAuth rejects requests without a valid bearer token and stores
// the caller's identity in the request locals.
func RequireAuth(verifier Verifier, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := FromAuthorizationHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			logger.Debug("Rejected bearer token", slog.Any("error", err))
			return fiber.NewError(fiber.StatusUnauthorized, "invalid bearer token")
		}

		c.Locals(LocalUserID, identity.UserID)
		c.Locals(LocalEmail, identity.Email)
		return c.Next()
	}
}

// OptionalAuth stores the caller's identity when a valid token is
// present and lets the request through either way. Handlers that serve
// demo data to anonymous visitors use this.
func OptionalAuth(verifier Verifier, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := FromAuthorizationHeader(c.Get(fiber.HeaderAuthorization))
		if token != "" {
			if identity, err := verifier.Verify(token); err == nil {
				c.Locals(LocalUserID, identity.UserID)
				c.Locals(LocalEmail, identity.Email)
			} else {
				logger.Debug("Ignoring invalid bearer token on optional route", slog.Any("error", err))
			}
		}
		return c.Next()
	}
}

// UserID returns the authenticated user ID, or empty for anonymous
// requests.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(LocalUserID).(string); ok {
		return id
	}
	return ""
}
