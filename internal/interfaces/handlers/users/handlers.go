package users

import (
	usersvc "siglo-backend/internal/application/users"
	"siglo-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

var userErrors = response.StatusTable{
	usersvc.ErrInvalidEmail:    fiber.StatusBadRequest,
	usersvc.ErrInvalidPassword: fiber.StatusBadRequest,
	usersvc.ErrInvalidFullName: fiber.StatusBadRequest,
	usersvc.ErrInvalidRole:     fiber.StatusBadRequest,
	usersvc.ErrEmailTaken:      fiber.StatusConflict,
}

type Handlers struct {
	Service *usersvc.Service
}

// Register POST /api/v1/auth/register. Public sign-up, always a CLIENT.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var body usersvc.CreateUserInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	u, err := h.Service.Register(c.UserContext(), body)
	if err != nil {
		return response.FromError(c, err, userErrors)
	}
	return response.SuccessCreated(c, "User created successfully", fiber.Map{"user": u}, nil)
}

// List GET /api/v1/admin/users?role=CLIENT
func (h *Handlers) List(c *fiber.Ctx) error {
	list, err := h.Service.List(c.UserContext(), c.Query("role"))
	if err != nil {
		return response.FromError(c, err, userErrors)
	}
	return response.Success(c, "Users retrieved", list, fiber.Map{"count": len(list)})
}
