package auth

import (
	"strconv"

	authsvc "siglo-backend/internal/application/auth"
	"siglo-backend/internal/middleware"
	roles "siglo-backend/internal/pkg/constants"
	"siglo-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const userSessionsPrefix = "user_sessions:"

var loginErrors = response.StatusTable{
	authsvc.ErrEmailPasswordRequired: fiber.StatusBadRequest,
	authsvc.ErrInvalidEmail:          fiber.StatusUnauthorized,
	authsvc.ErrIncorrectPassword:     fiber.StatusUnauthorized,
}

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	UserFinder authsvc.UserFinder
	Rdb        *redis.Client
	Config     middleware.SessionConfig
}

// LoginRequest body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login POST /api/v1/auth/login. Authenticate, open a session, track it under user_sessions:<id>.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.UserFinder == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, authsvc.ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}

	user, err := h.UserFinder.FindByEmailAndPassword(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return response.FromError(c, err, loginErrors)
	}

	sessionID := middleware.RegenerateSessionID(c)
	userID := strconv.FormatUint(uint64(user.ID), 10)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:   userID,
		FullName: user.FullName,
		Email:    user.Email,
		Role:     user.Role,
	})

	if err := h.Rdb.SAdd(c.UserContext(), userSessionsPrefix+userID, sessionID).Err(); err != nil {
		return response.FromError(c, err, nil)
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)

	log.Info().Str("user_id", userID).Str("role", user.Role).Msg("login")
	return response.Success(c, "Login successful", fiber.Map{
		"user": authsvc.SessionUserShape{
			UserID:    userID,
			FullName:  user.FullName,
			Email:     user.Email,
			Role:      user.Role,
			RoleLabel: roles.RoleLabel(user.Role),
		},
	}, nil)
}

// Me GET /api/v1/auth/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	user, err := authsvc.VerifyUser(middleware.GetUser(c))
	if err != nil {
		log.Debug().Bool("session_present", middleware.GetSessionID(c) != "").Msg("auth/me: not authenticated")
		return response.Unauthorized(c, err.Error())
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

// Logout DELETE /api/v1/auth/logout. Drop the session from Redis and clear the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	ctx := c.UserContext()

	if sessionID != "" {
		if user, err := authsvc.VerifyUser(middleware.GetUser(c)); err == nil {
			_ = h.Rdb.SRem(ctx, userSessionsPrefix+user.UserID, sessionID).Err()
		}
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out successfully", nil, nil)
}
