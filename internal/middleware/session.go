package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionConfig controls the session cookie attributes.
type SessionConfig struct {
	Secret            string
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName  = "siglo.sid"
	SessionRedisPrefix = "session:"
	sessionMaxAge      = 24 * time.Hour
	sessionLocal       = "session"
)

// SessionUser is what login stores under "user". UserID is the decimal
// users.id so it survives the JSON round trip unchanged.
type SessionUser struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type session struct {
	id   string
	data map[string]interface{}
}

// cookieSessionID accepts "s:<id>" and "s:<id>.<signature>" as well as a bare id.
func cookieSessionID(raw string) string {
	if rest, ok := strings.CutPrefix(raw, "s:"); ok {
		id, _, _ := strings.Cut(rest, ".")
		return id
	}
	return raw
}

func loadSession(ctx context.Context, rdb *redis.Client, id string) (map[string]interface{}, error) {
	data := make(map[string]interface{})
	if id == "" {
		return data, nil
	}
	b, err := rdb.Get(ctx, SessionRedisPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return data, nil
	}
	if err != nil {
		return data, err
	}
	_ = json.Unmarshal(b, &data)
	return data, nil
}

// Session loads the Redis-backed session named by the cookie before the
// handler runs and writes it back afterwards. Anonymous sessions are never
// persisted.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := cookieSessionID(c.Cookies(SessionCookieName))
		data, err := loadSession(c.UserContext(), rdb, id)
		if err != nil {
			Logger(c).Warn().Err(err).Msg("session load failed")
		}
		s := &session{id: id, data: data}
		c.Locals(sessionLocal, s)
		c.Locals(userLocal, s.data["user"])

		if err := c.Next(); err != nil {
			return err
		}

		if _, ok := s.data["user"]; !ok || s.id == "" {
			return nil
		}
		b, _ := json.Marshal(s.data)
		if err := rdb.Set(c.UserContext(), SessionRedisPrefix+s.id, b, sessionMaxAge).Err(); err != nil {
			Logger(c).Warn().Err(err).Msg("session save failed")
		}
		return nil
	}
}

func currentSession(c *fiber.Ctx) *session {
	if s, ok := c.Locals(sessionLocal).(*session); ok {
		return s
	}
	s := &session{data: make(map[string]interface{})}
	c.Locals(sessionLocal, s)
	return s
}

// GetSessionID returns the id of the loaded session, "" when anonymous.
func GetSessionID(c *fiber.Ctx) string {
	return currentSession(c).id
}

// SetSessionUser stores user in the session. Call RegenerateSessionID first.
func SetSessionUser(c *fiber.Ctx, user SessionUser) {
	s := currentSession(c)
	s.data["user"] = map[string]interface{}{
		"user_id":   user.UserID,
		"full_name": user.FullName,
		"email":     user.Email,
		"role":      user.Role,
	}
	c.Locals(userLocal, s.data["user"])
}

// RegenerateSessionID issues a fresh id so a pre-login id is never reused.
func RegenerateSessionID(c *fiber.Ctx) string {
	s := currentSession(c)
	s.id = uuid.NewString()
	return s.id
}

// DestroySession forgets the session for the rest of the request. The caller
// clears the cookie and the Redis key.
func DestroySession(c *fiber.Ctx) {
	s := currentSession(c)
	s.id = ""
	s.data = make(map[string]interface{})
	c.Locals(userLocal, nil)
}

// SessionCookieConfig returns the cookie template used to set and clear the
// session cookie. Cross-site dev mode needs SameSite=None, which in turn
// requires Secure.
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	cookie := fiber.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		MaxAge:   int(sessionMaxAge / time.Second),
		HTTPOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if cfg.AllowCrossSiteDev {
		cookie.SameSite = fiber.CookieSameSiteNoneMode
		cookie.Secure = true
	}
	return cookie
}
