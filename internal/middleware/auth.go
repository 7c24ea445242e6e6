package middleware

import (
	"strconv"

	"siglo-backend/internal/application/policy"
	"siglo-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetActor(c) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// GetActor converts the session user into a policy actor. Nil when the
// session has no usable user.
func GetActor(c *fiber.Ctx) *policy.Actor {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return nil
	}
	var id uint64
	switch v := m["user_id"].(type) {
	case string:
		id, _ = strconv.ParseUint(v, 10, 64)
	case float64:
		id = uint64(v)
	case uint:
		id = uint64(v)
	case int:
		id = uint64(v)
	}
	if id == 0 {
		return nil
	}
	role, _ := m["role"].(string)
	return &policy.Actor{UserID: uint(id), Role: role}
}
