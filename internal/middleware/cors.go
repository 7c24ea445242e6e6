package middleware

import (
	"strings"

	"siglo-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig decides which browser origins may call the API with credentials.
// Localhost origins are only trusted outside production.
type CORSConfig struct {
	AllowedSuffix  string
	DevPassword    string
	AllowLocalhost bool
}

const (
	corsAllowHeaders = "Content-Type, dev-password, X-Trace-Id"
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// CORS rejects cross-origin requests from unknown origins with 403. Requests
// without an Origin header (curl, server-to-server) pass through untouched.
func CORS(cfg CORSConfig) fiber.Handler {
	suffix := strings.ToLower(cfg.AllowedSuffix)
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		if !cfg.allows(strings.ToLower(origin), suffix, c.Get("dev-password")) {
			return response.Error(c, "Not allowed by CORS", fiber.StatusForbidden, nil)
		}

		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
		c.Vary(fiber.HeaderOrigin)
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func (cfg CORSConfig) allows(origin, suffix, devPassword string) bool {
	switch {
	case suffix != "" && strings.HasSuffix(origin, suffix):
		return true
	case cfg.DevPassword != "" && devPassword == cfg.DevPassword:
		return true
	case cfg.AllowLocalhost:
		return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
	}
	return false
}
