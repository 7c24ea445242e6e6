package middleware

import (
	"errors"

	"siglo-backend/internal/application/policy"
	"siglo-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthorizePermission checks the session user's role for permission. Owner
// scoping is left to handlers, which know the resource.
func AuthorizePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := policy.Authorize(GetActor(c), permission, nil); err != nil {
			return PolicyError(c, err)
		}
		return c.Next()
	}
}

// PolicyError writes the response for a policy.Authorize failure.
func PolicyError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, policy.ErrUnauthenticated):
		return response.Unauthorized(c, "Unauthorized")
	case errors.Is(err, policy.ErrForbidden):
		return response.Error(c, err.Error(), fiber.StatusForbidden, nil)
	default:
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
}
